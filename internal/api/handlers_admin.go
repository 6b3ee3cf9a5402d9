package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"learnstream/server/internal/model"
	"learnstream/server/internal/provider"
)

type createUploadRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	CourseID    string `json:"course_id"`
}

// createUpload opens a direct upload at the provider and stores the draft
// lesson that the upload's webhooks will later resolve by upload id.
func (s *Server) createUpload(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req createUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid upload payload", false, nil)
		return
	}
	ctx := c.Request.Context()
	lessonID := uuid.NewString()
	title := strings.TrimSpace(req.Title)

	up, err := s.provider.CreateUpload(ctx, provider.UploadRequest{
		CORSOrigin:  s.uploadOrigin,
		Title:       title,
		Passthrough: lessonID,
	})
	if err != nil {
		s.writeProviderError(c, "create_upload_failed", err)
		return
	}

	now := time.Now().UTC()
	lesson, err := s.lessons.CreateLesson(ctx, model.Lesson{
		ID:          lessonID,
		CourseID:    req.CourseID,
		Title:       title,
		Description: req.Description,
		Video: model.VideoAsset{
			Status:       model.AssetUploading,
			UploadID:     up.ID,
			UploadMethod: model.UploadDirect,
			Visibility:   "signed",
			UpdatedAt:    now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	s.log.Info("upload_created",
		"trace_id", traceIDFromContext(c),
		"lesson_id", lesson.ID,
		"upload_id", up.ID,
	)
	writeData(c, http.StatusCreated, gin.H{
		"lesson":     lesson,
		"upload_id":  up.ID,
		"upload_url": up.URL,
	})
}

type importAssetRequest struct {
	AssetID     string `json:"asset_id" binding:"required"`
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description" binding:"max=2000"`
	CourseID    string `json:"course_id"`
}

// importAsset links an asset that already exists at the provider to a new lesson.
func (s *Server) importAsset(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req importAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "asset_id is required", false, nil)
		return
	}
	ctx := c.Request.Context()
	asset, err := s.provider.FetchAsset(ctx, req.AssetID)
	if err != nil {
		s.writeProviderError(c, "import_fetch_failed", err)
		return
	}

	now := time.Now().UTC()
	video := videoFromAsset(asset, model.UploadImportExisting, now)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("Imported %s", asset.ID)
	}

	lesson, err := s.lessons.CreateLesson(ctx, model.Lesson{
		ID:          uuid.NewString(),
		CourseID:    req.CourseID,
		Title:       title,
		Description: req.Description,
		Video:       video,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	writeData(c, http.StatusCreated, lesson)
}

type importURLRequest struct {
	URL         string `json:"url" binding:"required,url"`
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	CourseID    string `json:"course_id"`
}

// importFromURL has the provider pull a public video file and registers the
// lesson under the new asset id. Its asset.ready webhook completes it.
func (s *Server) importFromURL(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req importURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "url and title are required", false, nil)
		return
	}
	ctx := c.Request.Context()
	lessonID := uuid.NewString()
	title := strings.TrimSpace(req.Title)

	asset, err := s.provider.CreateAsset(ctx, provider.AssetRequest{
		InputURL:    req.URL,
		Title:       title,
		Passthrough: lessonID,
	})
	if err != nil {
		s.writeProviderError(c, "create_asset_failed", err)
		return
	}

	now := time.Now().UTC()
	lesson, err := s.lessons.CreateLesson(ctx, model.Lesson{
		ID:          lessonID,
		CourseID:    req.CourseID,
		Title:       title,
		Description: req.Description,
		Video:       videoFromAsset(asset, model.UploadURLImport, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	s.log.Info("asset_import_started",
		"trace_id", traceIDFromContext(c),
		"lesson_id", lesson.ID,
		"asset_id", asset.ID,
	)
	writeData(c, http.StatusCreated, lesson)
}

// videoFromAsset builds the sub-document for a lesson created from an asset
// the provider already knows about.
func videoFromAsset(asset provider.Asset, method model.UploadMethod, now time.Time) model.VideoAsset {
	video := model.VideoAsset{
		Status:       model.AssetCreated,
		UploadID:     asset.UploadID,
		AssetID:      asset.ID,
		Duration:     asset.Duration,
		UploadMethod: method,
		UpdatedAt:    now,
	}
	if asset.Status == "ready" {
		video.Status = model.AssetReady
	}
	if pb, ok := asset.PrimaryPlayback(); ok {
		links := provider.PlaybackLinks(pb.ID)
		video.PlaybackID = pb.ID
		video.Visibility = pb.Policy
		video.ThumbnailURL = links.Thumbnail
		video.ManifestURL = links.Manifest
		video.WatchPageURL = links.WatchPage
	}
	for _, t := range asset.Tracks {
		video.Tracks = append(video.Tracks, model.Track{ID: t.ID, Type: t.Type, Name: t.Name, LanguageCode: t.LanguageCode, Duration: t.Duration})
	}
	return video
}

func (s *Server) getLesson(c *gin.Context) {
	lesson, err := s.lessons.GetLesson(c.Request.Context(), c.Param("lesson_id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	writeData(c, http.StatusOK, lesson)
}

// streamLessonEvents pushes lifecycle transitions for one lesson as SSE.
// The current state is sent first so late subscribers start in sync.
func (s *Server) streamLessonEvents(c *gin.Context) {
	ctx := c.Request.Context()
	lesson, err := s.lessons.GetLesson(ctx, c.Param("lesson_id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	sub, unsubscribe := s.hub.Subscribe(lesson.ID, 32)
	defer unsubscribe()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, http.StatusInternalServerError, "SSE_UNSUPPORTED", "Streaming unsupported", false, nil)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeSSE(c, model.LessonEvent{
		EventID:  uuid.NewString(),
		LessonID: lesson.ID,
		Type:     model.EventLessonStateChanged,
		State:    lesson.Video.Status,
		TS:       lesson.UpdatedAt,
	})
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			writeSSE(c, evt)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, ": ping %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeSSE(c *gin.Context, evt model.LessonEvent) {
	payload, _ := json.Marshal(evt)
	fmt.Fprintf(c.Writer, "id: %s\n", evt.EventID)
	fmt.Fprintf(c.Writer, "event: %s\n", evt.Type)
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
}
