package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"learnstream/server/internal/metrics"
	"learnstream/server/internal/model"
	"learnstream/server/internal/provider"
	"learnstream/server/internal/store"
	"learnstream/server/internal/webhook"
)

type Status string

const (
	StatusOK             Status = "ok"
	StatusIgnored        Status = "ignored"
	StatusErroredHandled Status = "errored-handled"
)

// Result is what the webhook endpoint reports back to the provider.
type Result struct {
	Status   Status
	Event    string
	LessonID string
	Reason   string
}

// RetryableError marks a reconciliation failure the provider should redeliver.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// LessonStore is the slice of the lesson catalog the reconciler writes to.
type LessonStore interface {
	FindByIdentity(ctx context.Context, id store.Identity) (model.Lesson, error)
	UpdateByIdentity(ctx context.Context, id store.Identity, upd *store.LessonUpdate) (model.Lesson, error)
	InsertIfAbsent(ctx context.Context, draft model.Lesson) (model.Lesson, bool, error)
}

type AssetFetcher interface {
	FetchAsset(ctx context.Context, assetID string) (provider.Asset, error)
}

type Publisher interface {
	Publish(evt model.LessonEvent)
}

// Reconciler applies normalized provider events to lesson records.
type Reconciler struct {
	store   LessonStore
	assets  AssetFetcher
	events  Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReconciler(s LessonStore, assets AssetFetcher, events Publisher, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   s,
		assets:  assets,
		events:  events,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Apply dispatches evt. Partial or unmatched events are acknowledged with
// StatusIgnored; remote and store failures come back as *RetryableError.
func (r *Reconciler) Apply(ctx context.Context, evt webhook.Event) (Result, error) {
	switch e := evt.(type) {
	case webhook.UploadCreated:
		return r.uploadCreated(ctx, e)
	case webhook.AssetCreated:
		return r.assetCreated(ctx, e)
	case webhook.AssetReady:
		return r.assetReady(ctx, e)
	case webhook.AssetErrored:
		upd := store.NewLessonUpdate().SetState(model.AssetErrored)
		if e.Message != "" {
			upd.SetErrorMessage(e.Message)
		}
		return r.update(ctx, evt, store.Identity{AssetID: e.AssetID}, upd, StatusErroredHandled)
	case webhook.UploadCancelled:
		upd := store.NewLessonUpdate().SetState(model.AssetUploadCancelled)
		return r.update(ctx, evt, store.Identity{UploadID: e.UploadID}, upd, StatusOK)
	case webhook.UploadErrored:
		upd := store.NewLessonUpdate().SetState(model.AssetUploadError)
		if e.Message != "" {
			upd.SetErrorMessage(e.Message)
		}
		return r.update(ctx, evt, store.Identity{UploadID: e.UploadID}, upd, StatusErroredHandled)
	case webhook.AssetDeleted:
		upd := store.NewLessonUpdate().SetState(model.AssetDeleted)
		return r.update(ctx, evt, store.Identity{AssetID: e.AssetID}, upd, StatusOK)
	default:
		return ignored(evt, "unhandled event type"), nil
	}
}

func (r *Reconciler) uploadCreated(ctx context.Context, e webhook.UploadCreated) (Result, error) {
	if e.UploadID == "" {
		return ignored(e, "missing upload id"), nil
	}
	now := r.now().UTC()
	draft := model.Lesson{
		ID:    uuid.NewString(),
		Title: e.Title,
		Video: model.VideoAsset{
			Status:       model.AssetUploadCreated,
			UploadID:     e.UploadID,
			UploadMethod: model.UploadWebhook,
			UpdatedAt:    now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	lesson, inserted, err := r.store.InsertIfAbsent(ctx, draft)
	if err != nil {
		return r.storeFailure(e, "insert draft", err)
	}
	if inserted {
		r.publish(lesson, model.EventLessonDrafted, e)
		r.logger.Info("lesson_drafted", "lesson_id", lesson.ID, "upload_id", e.UploadID, "event_id", e.EventID())
	}
	return Result{Status: StatusOK, Event: e.Type(), LessonID: lesson.ID}, nil
}

func (r *Reconciler) assetCreated(ctx context.Context, e webhook.AssetCreated) (Result, error) {
	if e.AssetID == "" {
		return ignored(e, "missing asset id"), nil
	}
	uploadID := e.UploadID
	if uploadID == "" {
		asset, err := r.fetch(ctx, e.AssetID)
		if err != nil {
			return Result{}, err
		}
		uploadID = asset.UploadID
	}
	id := store.Identity{UploadID: uploadID, AssetID: e.AssetID}
	current, res, ok, err := r.resolve(ctx, e, id)
	if !ok {
		return res, err
	}
	upd := store.NewLessonUpdate().SetAssetID(e.AssetID)
	// A late asset.created must not pull a ready or failed lesson back.
	if st := current.Video.Status; st != model.AssetReady && !st.Terminal() {
		upd.SetState(model.AssetCreated)
	}
	if uploadID != "" && current.Video.UploadID == "" {
		upd.SetUploadID(uploadID)
	}
	r.refreshTitle(upd, current, e.Title)
	return r.write(ctx, e, id, upd, StatusOK)
}

func (r *Reconciler) assetReady(ctx context.Context, e webhook.AssetReady) (Result, error) {
	if e.AssetID == "" {
		return ignored(e, "missing asset id"), nil
	}
	asset, err := r.fetch(ctx, e.AssetID)
	if err != nil {
		return Result{}, err
	}

	uploadID := e.UploadID
	if uploadID == "" {
		uploadID = asset.UploadID
	}
	id := store.Identity{UploadID: uploadID, AssetID: e.AssetID}
	current, res, ok, err := r.resolve(ctx, e, id)
	if !ok {
		return res, err
	}

	upd := store.NewLessonUpdate().SetAssetID(e.AssetID)
	// Metadata is still refreshed for errored or deleted lessons, but a
	// redelivered ready must not make them playable again.
	if current.Video.Status.Terminal() {
		r.logger.Info("lesson_terminal_state_kept", "lesson_id", current.ID, "state", string(current.Video.Status), "event_id", e.EventID())
	} else {
		upd.SetState(model.AssetReady)
	}
	if uploadID != "" && current.Video.UploadID == "" {
		upd.SetUploadID(uploadID)
	}

	playbackID, policy := e.PlaybackID, e.Policy
	if pb, ok := asset.PrimaryPlayback(); ok {
		playbackID, policy = pb.ID, pb.Policy
	}
	if playbackID != "" {
		links := provider.PlaybackLinks(playbackID)
		upd.SetPlaybackID(playbackID).
			SetThumbnailURL(links.Thumbnail).
			SetManifestURL(links.Manifest).
			SetWatchPageURL(links.WatchPage)
	}
	if policy != "" {
		upd.SetVisibility(policy)
	}

	switch {
	case asset.Duration != nil:
		upd.SetDuration(*asset.Duration)
	case e.Duration != nil:
		upd.SetDuration(*e.Duration)
	}

	switch {
	case len(asset.Tracks) > 0:
		upd.SetTracks(remoteTracks(asset.Tracks))
	case len(e.Tracks) > 0:
		upd.SetTracks(eventTracks(e.Tracks))
	}

	r.refreshTitle(upd, current, e.Title)
	return r.write(ctx, e, id, upd, StatusOK)
}

// update resolves id, then applies upd. Used by the single-field transitions.
func (r *Reconciler) update(ctx context.Context, evt webhook.Event, id store.Identity, upd *store.LessonUpdate, okStatus Status) (Result, error) {
	if _, res, ok, err := r.resolve(ctx, evt, id); !ok {
		return res, err
	}
	return r.write(ctx, evt, id, upd, okStatus)
}

// resolve reports ok=false with the Result/error to return when no lesson
// can be acted on.
func (r *Reconciler) resolve(ctx context.Context, evt webhook.Event, id store.Identity) (model.Lesson, Result, bool, error) {
	if id.IsZero() {
		return model.Lesson{}, ignored(evt, "missing identifiers"), false, nil
	}
	lesson, err := r.store.FindByIdentity(ctx, id)
	switch {
	case err == nil:
		return lesson, Result{}, true, nil
	case errors.Is(err, store.ErrNotFound):
		r.logger.Info("webhook_no_matching_lesson", "event", evt.Type(), "event_id", evt.EventID(),
			"upload_id", id.UploadID, "asset_id", id.AssetID)
		return model.Lesson{}, ignored(evt, "no matching lesson"), false, nil
	default:
		res, err := r.storeFailure(evt, "find lesson", err)
		return model.Lesson{}, res, false, err
	}
}

func (r *Reconciler) write(ctx context.Context, evt webhook.Event, id store.Identity, upd *store.LessonUpdate, okStatus Status) (Result, error) {
	lesson, err := r.store.UpdateByIdentity(ctx, id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ignored(evt, "no matching lesson"), nil
		}
		return r.storeFailure(evt, "update lesson", err)
	}
	r.logger.Info("lesson_reconciled",
		"lesson_id", lesson.ID,
		"event", evt.Type(),
		"event_id", evt.EventID(),
		"state", string(lesson.Video.Status),
		"fields", upd.Fields(),
	)
	r.publish(lesson, model.EventLessonStateChanged, evt)
	return Result{Status: okStatus, Event: evt.Type(), LessonID: lesson.ID}, nil
}

func (r *Reconciler) fetch(ctx context.Context, assetID string) (provider.Asset, error) {
	if r.assets == nil {
		return provider.Asset{}, &RetryableError{Op: "fetch asset", Err: errors.New("no asset client configured")}
	}
	asset, err := r.assets.FetchAsset(ctx, assetID)
	if err != nil {
		r.metrics.ObserveRemoteFetch("error")
		return provider.Asset{}, &RetryableError{Op: "fetch asset " + assetID, Err: err}
	}
	r.metrics.ObserveRemoteFetch("ok")
	return asset, nil
}

// storeFailure maps a store error. Identity conflicts cannot be fixed by
// redelivery, so they are acknowledged.
func (r *Reconciler) storeFailure(evt webhook.Event, op string, err error) (Result, error) {
	if errors.Is(err, store.ErrConflict) {
		r.logger.Error("lesson_identity_conflict", "event", evt.Type(), "event_id", evt.EventID(), "error", err.Error())
		return ignored(evt, "identity already claimed by another lesson"), nil
	}
	return Result{}, &RetryableError{Op: op, Err: err}
}

// refreshTitle keeps an existing title when the event only carries the fallback.
func (r *Reconciler) refreshTitle(upd *store.LessonUpdate, current model.Lesson, title string) {
	if title == "" {
		return
	}
	if title == webhook.FallbackTitle && current.Title != "" {
		return
	}
	if title != current.Title {
		upd.SetTitle(title)
	}
}

func (r *Reconciler) publish(lesson model.Lesson, typ model.LessonEventType, evt webhook.Event) {
	if r.events == nil {
		return
	}
	r.events.Publish(model.LessonEvent{
		EventID:     uuid.NewString(),
		LessonID:    lesson.ID,
		Type:        typ,
		State:       lesson.Video.Status,
		SourceEvent: evt.Type(),
		TS:          r.now().UTC(),
	})
}

func ignored(evt webhook.Event, reason string) Result {
	return Result{Status: StatusIgnored, Event: evt.Type(), Reason: reason}
}

func remoteTracks(in []provider.Track) []model.Track {
	out := make([]model.Track, 0, len(in))
	for _, t := range in {
		out = append(out, model.Track{ID: t.ID, Type: t.Type, Name: t.Name, LanguageCode: t.LanguageCode, Duration: t.Duration})
	}
	return out
}

func eventTracks(in []webhook.Track) []model.Track {
	out := make([]model.Track, 0, len(in))
	for _, t := range in {
		out = append(out, model.Track{ID: t.ID, Type: t.Type, Name: t.Name, LanguageCode: t.LanguageCode, Duration: t.Duration})
	}
	return out
}
