package api

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnstream/server/internal/model"
	"learnstream/server/internal/playback"
	"learnstream/server/internal/provider"
	"learnstream/server/internal/store"
)

func (s *Server) lessonPlayback(c *gin.Context) {
	ctx := c.Request.Context()
	userID := userIDFromContext(c)
	lesson, err := s.lessons.GetLesson(ctx, c.Param("lesson_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "LESSON_NOT_FOUND", "Lesson not found", false, nil)
			return
		}
		s.log.Error("lesson_lookup_failed", "trace_id", traceIDFromContext(c), "error", err.Error())
		writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Failed to load lesson", true, nil)
		return
	}

	if roleFromContext(c) != model.RoleAdmin {
		if lesson.CourseID == "" {
			writeError(c, http.StatusForbidden, "NOT_ENROLLED", "Lesson is not part of a course", false, nil)
			return
		}
		enrolled, err := s.enrollments.IsEnrolled(ctx, userID, lesson.CourseID)
		if err != nil {
			s.log.Error("enrollment_check_failed", "trace_id", traceIDFromContext(c), "course_id", lesson.CourseID, "error", err.Error())
			writeError(c, http.StatusServiceUnavailable, "ENROLLMENT_UNAVAILABLE", "Could not verify enrollment", true, nil)
			return
		}
		if !enrolled {
			writeError(c, http.StatusForbidden, "NOT_ENROLLED", "Not enrolled in this course", false, nil)
			return
		}
	}

	if lesson.Video.Status != model.AssetReady || lesson.Video.PlaybackID == "" {
		writeError(c, http.StatusConflict, "VIDEO_NOT_READY", "Video is not ready for playback", false, map[string]any{
			"state": lesson.Video.Status,
		})
		return
	}

	signed, err := s.signer.Sign(ctx, lesson.Video.PlaybackID, userID)
	if err != nil {
		switch {
		case errors.Is(err, playback.ErrSigningNotConfigured):
			writeError(c, http.StatusServiceUnavailable, "PLAYBACK_UNAVAILABLE", "Playback signing is not configured", false, nil)
		case errors.Is(err, playback.ErrInvalidPlaybackID):
			s.log.Warn("playback_id_invalid", "trace_id", traceIDFromContext(c), "lesson_id", lesson.ID)
			writeError(c, http.StatusUnprocessableEntity, "INVALID_PLAYBACK_ID", "Lesson has an invalid playback id", false, nil)
		default:
			s.log.Error("playback_sign_failed", "trace_id", traceIDFromContext(c), "lesson_id", lesson.ID, "error", err.Error())
			writeError(c, http.StatusInternalServerError, "PLAYBACK_SIGN_FAILED", "Failed to sign playback url", false, nil)
		}
		return
	}

	writeData(c, http.StatusOK, newPlaybackView(lesson, signed))
}

type assetSummary struct {
	AssetID    string           `json:"asset_id,omitempty"`
	Status     model.AssetState `json:"status"`
	Duration   *float64         `json:"duration,omitempty"`
	Visibility string           `json:"visibility,omitempty"`
}

type playbackView struct {
	LessonID     string       `json:"lesson_id"`
	PlaybackID   string       `json:"playback_id"`
	ManifestURL  string       `json:"manifest_url"`
	WatchPageURL string       `json:"watch_page_url,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Mux          assetSummary `json:"mux"`
	EmbedIframe  string       `json:"embed_iframe"`
}

// newPlaybackView returns the signed manifest in place of the stored,
// unsigned one.
func newPlaybackView(lesson model.Lesson, signedURL string) playbackView {
	v := lesson.Video
	links := provider.PlaybackLinks(v.PlaybackID)
	watch := v.WatchPageURL
	if watch == "" {
		watch = links.WatchPage
	}
	thumb := v.ThumbnailURL
	if thumb == "" {
		thumb = links.Thumbnail
	}
	return playbackView{
		LessonID:     lesson.ID,
		PlaybackID:   v.PlaybackID,
		ManifestURL:  signedURL,
		WatchPageURL: watch,
		ThumbnailURL: thumb,
		Mux: assetSummary{
			AssetID:    v.AssetID,
			Status:     v.Status,
			Duration:   v.Duration,
			Visibility: v.Visibility,
		},
		EmbedIframe: fmt.Sprintf(`<iframe src="%s" style="width:100%%;border:none;aspect-ratio:16/9;" `+
			`allow="accelerometer; gyroscope; autoplay; encrypted-media; picture-in-picture;" allowfullscreen></iframe>`,
			html.EscapeString(links.WatchPage)),
	}
}
