package provider

import (
	"context"
	"fmt"
)

// Error is a failed call to the video provider. Retryable tells callers
// whether the provider's redelivery is likely to succeed later.
type Error struct {
	Category        string
	Code            string
	StatusCode      int
	Retryable       bool
	UserMessage     string
	InternalMessage string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s (%s, status %d): %s", e.Category, e.Code, e.StatusCode, e.InternalMessage)
	}
	return fmt.Sprintf("provider %s (%s): %s", e.Category, e.Code, e.InternalMessage)
}

type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

type Track struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	LanguageCode string  `json:"language_code"`
	Duration     float64 `json:"duration"`
}

// Asset is the provider's view of a processed video.
type Asset struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	UploadID    string       `json:"upload_id"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
	Duration    *float64     `json:"duration"`
	Tracks      []Track      `json:"tracks"`
	Passthrough string       `json:"passthrough"`
}

// PrimaryPlayback returns the first playback id, if any.
func (a Asset) PrimaryPlayback() (PlaybackID, bool) {
	if len(a.PlaybackIDs) == 0 {
		return PlaybackID{}, false
	}
	return a.PlaybackIDs[0], true
}

type UploadRequest struct {
	CORSOrigin     string
	Title          string
	Passthrough    string
	PlaybackPolicy string
}

// AssetRequest asks the provider to pull a video from InputURL.
type AssetRequest struct {
	InputURL       string
	Title          string
	Passthrough    string
	PlaybackPolicy string
}

// Upload is a direct-upload session: the client PUTs the file to URL.
type Upload struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// Adapter is the subset of the provider API the service uses.
type Adapter interface {
	FetchAsset(ctx context.Context, assetID string) (Asset, error)
	CreateUpload(ctx context.Context, req UploadRequest) (Upload, error)
	CreateAsset(ctx context.Context, req AssetRequest) (Asset, error)
}

const (
	imageHost  = "image.mux.com"
	streamHost = "stream.mux.com"
	playerHost = "player.mux.com"
)

// Links are the unsigned URLs derived from a playback id. Signed playback
// ids still need a token before the manifest can be fetched.
type Links struct {
	Thumbnail string
	Manifest  string
	WatchPage string
}

func PlaybackLinks(playbackID string) Links {
	if playbackID == "" {
		return Links{}
	}
	return Links{
		Thumbnail: "https://" + imageHost + "/" + playbackID + "/thumbnail.jpg",
		Manifest:  "https://" + streamHost + "/" + playbackID + ".m3u8",
		WatchPage: "https://" + playerHost + "/" + playbackID,
	}
}
