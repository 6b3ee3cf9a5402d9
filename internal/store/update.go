package store

import (
	"time"

	"learnstream/server/internal/model"
)

// LessonUpdate is a partial update of a lesson's asset sub-document. Only
// fields that were explicitly set are written.
type LessonUpdate struct {
	state        *model.AssetState
	title        *string
	uploadID     *string
	assetID      *string
	playbackID   *string
	duration     *float64
	tracks       []model.Track
	tracksSet    bool
	visibility   *string
	thumbnailURL *string
	manifestURL  *string
	watchPageURL *string
	errorMessage *string
}

func NewLessonUpdate() *LessonUpdate {
	return &LessonUpdate{}
}

func (u *LessonUpdate) SetState(s model.AssetState) *LessonUpdate {
	u.state = &s
	return u
}

func (u *LessonUpdate) SetTitle(title string) *LessonUpdate {
	u.title = &title
	return u
}

func (u *LessonUpdate) SetUploadID(id string) *LessonUpdate {
	u.uploadID = &id
	return u
}

func (u *LessonUpdate) SetAssetID(id string) *LessonUpdate {
	u.assetID = &id
	return u
}

func (u *LessonUpdate) SetPlaybackID(id string) *LessonUpdate {
	u.playbackID = &id
	return u
}

func (u *LessonUpdate) SetDuration(d float64) *LessonUpdate {
	u.duration = &d
	return u
}

func (u *LessonUpdate) SetTracks(tracks []model.Track) *LessonUpdate {
	u.tracks = append([]model.Track(nil), tracks...)
	u.tracksSet = true
	return u
}

func (u *LessonUpdate) SetVisibility(v string) *LessonUpdate {
	u.visibility = &v
	return u
}

func (u *LessonUpdate) SetThumbnailURL(v string) *LessonUpdate {
	u.thumbnailURL = &v
	return u
}

func (u *LessonUpdate) SetManifestURL(v string) *LessonUpdate {
	u.manifestURL = &v
	return u
}

func (u *LessonUpdate) SetWatchPageURL(v string) *LessonUpdate {
	u.watchPageURL = &v
	return u
}

func (u *LessonUpdate) SetErrorMessage(msg string) *LessonUpdate {
	u.errorMessage = &msg
	return u
}

func (u *LessonUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Fields lists the document paths this update writes, for logging.
func (u *LessonUpdate) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.title != nil, "title")
	add(u.state != nil, "mux.status")
	add(u.uploadID != nil, "mux.upload_id")
	add(u.assetID != nil, "mux.asset_id")
	add(u.playbackID != nil, "mux.playback_id")
	add(u.duration != nil, "mux.duration")
	add(u.tracksSet, "mux.tracks")
	add(u.visibility != nil, "mux.visibility")
	add(u.thumbnailURL != nil, "mux.thumbnail_url")
	add(u.manifestURL != nil, "mux.manifest_url")
	add(u.watchPageURL != nil, "mux.watch_page_url")
	add(u.errorMessage != nil, "mux.error_message")
	return out
}

// claimedIdentity is the identity the lesson will hold after the update.
func (u *LessonUpdate) claimedIdentity() Identity {
	var id Identity
	if u.uploadID != nil {
		id.UploadID = *u.uploadID
	}
	if u.assetID != nil {
		id.AssetID = *u.assetID
	}
	return id
}

func (u *LessonUpdate) apply(l *model.Lesson, now time.Time) {
	if u.title != nil {
		l.Title = *u.title
	}
	if u.state != nil {
		l.Video.Status = *u.state
	}
	if u.uploadID != nil {
		l.Video.UploadID = *u.uploadID
	}
	if u.assetID != nil {
		l.Video.AssetID = *u.assetID
	}
	if u.playbackID != nil {
		l.Video.PlaybackID = *u.playbackID
	}
	if u.duration != nil {
		d := *u.duration
		l.Video.Duration = &d
	}
	if u.tracksSet {
		l.Video.Tracks = append([]model.Track(nil), u.tracks...)
	}
	if u.visibility != nil {
		l.Video.Visibility = *u.visibility
	}
	if u.thumbnailURL != nil {
		l.Video.ThumbnailURL = *u.thumbnailURL
	}
	if u.manifestURL != nil {
		l.Video.ManifestURL = *u.manifestURL
	}
	if u.watchPageURL != nil {
		l.Video.WatchPageURL = *u.watchPageURL
	}
	if u.errorMessage != nil {
		l.Video.ErrorMessage = *u.errorMessage
	}
	l.Video.UpdatedAt = now
	l.UpdatedAt = now
}
