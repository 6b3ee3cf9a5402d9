package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"learnstream/server/internal/auth"
	"learnstream/server/internal/cache"
	"learnstream/server/internal/events"
	"learnstream/server/internal/lifecycle"
	"learnstream/server/internal/metrics"
	"learnstream/server/internal/model"
	"learnstream/server/internal/playback"
	"learnstream/server/internal/provider"
	"learnstream/server/internal/store"
	"learnstream/server/internal/webhook"
)

const webhookSecret = "whsec_test"

type testEnv struct {
	router  http.Handler
	store   *store.MemoryStore
	mock    *provider.MockClient
	hub     *events.Hub
	student model.User
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()
	authSvc := auth.NewService(st, "test-secret", 15*time.Minute, 24*time.Hour)
	student, err := authSvc.SeedUser("student@learnstream.local", "student123", model.RoleUser)
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	if _, err := authSvc.SeedUser("admin@learnstream.local", "admin12345", model.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := events.NewHub()
	mock := provider.NewMockClient()
	duration := 42.5
	mock.PutAsset(provider.Asset{
		ID:          "asset_1",
		Status:      "ready",
		UploadID:    "up_1",
		PlaybackIDs: []provider.PlaybackID{{ID: "pb_1", Policy: "signed"}},
		Duration:    &duration,
	})

	s := NewServer(Deps{
		Auth:           authSvc,
		Users:          st,
		Lessons:        st,
		Enrollments:    st,
		Verifier:       webhook.NewHMACVerifier(webhookSecret, 5*time.Minute),
		Reconciler:     lifecycle.NewReconciler(st, mock, hub, logger, m),
		WebhookLog:     st,
		Signer:         playback.NewSigner(playback.Config{Secret: "signing-secret", StreamHost: "stream.example.com"}, cache.NewMemoryCache(), logger, m),
		Provider:       mock,
		Hub:            hub,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger,
	})
	return &testEnv{router: s.Router(), store: st, mock: mock, hub: hub, student: student}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Data.AccessToken == "" {
		t.Fatalf("decode login response: %v %s", err, rec.Body.String())
	}
	return resp.Data.AccessToken
}

func (e *testEnv) postWebhook(t *testing.T, body, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Mux-Signature", header)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func signed(body string) string {
	return webhook.SignatureHeader(webhookSecret, time.Now(), []byte(body))
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) webhookAck {
	t.Helper()
	var ack webhookAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v %s", err, rec.Body.String())
	}
	return ack
}

func seedLesson(t *testing.T, st *store.MemoryStore, lesson model.Lesson) model.Lesson {
	t.Helper()
	now := time.Now().UTC()
	lesson.CreatedAt, lesson.UpdatedAt = now, now
	out, err := st.CreateLesson(context.Background(), lesson)
	if err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return out
}

const readyBody = `{"type":"video.asset.ready","data":{"id":"asset_1","upload_id":"up_1","playback_ids":[{"id":"pb_1"}],"duration":42.5}}`

func TestWebhookAssetReadyScenario(t *testing.T) {
	env := setupTestRouter(t)
	draft := seedLesson(t, env.store, model.Lesson{
		ID:    "lesson-1",
		Title: "Intro",
		Video: model.VideoAsset{Status: model.AssetUploading, UploadID: "up_1"},
	})

	rec := env.postWebhook(t, readyBody, signed(readyBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ack := decodeAck(t, rec); ack.Status != "ok" || ack.Event != "video.asset.ready" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	got, _ := env.store.GetLesson(context.Background(), draft.ID)
	v := got.Video
	if v.AssetID != "asset_1" || v.PlaybackID != "pb_1" || v.Status != model.AssetReady || v.Duration == nil || *v.Duration != 42.5 {
		t.Fatalf("unexpected lesson video %+v", v)
	}
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	env := setupTestRouter(t)
	seedLesson(t, env.store, model.Lesson{ID: "lesson-1", Video: model.VideoAsset{Status: model.AssetUploading, UploadID: "up_1"}})

	tampered := strings.Replace(readyBody, "42.5", "42.6", 1)
	stale := webhook.SignatureHeader("wrong-secret", time.Now().Add(-time.Hour), []byte(readyBody))
	for name, rec := range map[string]*httptest.ResponseRecorder{
		"missing":  env.postWebhook(t, readyBody, ""),
		"tampered": env.postWebhook(t, tampered, signed(readyBody)),
		"stale":    env.postWebhook(t, readyBody, stale),
	} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d body=%s", name, rec.Code, rec.Body.String())
		}
	}
	got, _ := env.store.GetLesson(context.Background(), "lesson-1")
	if got.Video.Status != model.AssetUploading {
		t.Fatalf("rejected webhook mutated the store: %+v", got.Video)
	}
}

func TestWebhookAcceptsLegacyHeaderName(t *testing.T) {
	env := setupTestRouter(t)
	body := `{"type":"video.upload.created","data":{"id":"up_7"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", strings.NewReader(body))
	req.Header.Set("X-Mux-Signature", signed(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || env.store.CountLessons() != 1 {
		t.Fatalf("status=%d lessons=%d", rec.Code, env.store.CountLessons())
	}
}

func TestWebhookUnknownTypeIsIgnored(t *testing.T) {
	env := setupTestRouter(t)
	lesson := seedLesson(t, env.store, model.Lesson{ID: "lesson-1", Video: model.VideoAsset{Status: model.AssetUploading, UploadID: "up_1"}})

	body := `{"type":"video.something.unheard_of","data":{"id":"up_1"}}`
	rec := env.postWebhook(t, body, signed(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ack := decodeAck(t, rec); ack.Status != "ignored" || ack.Event != "video.something.unheard_of" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	got, _ := env.store.GetLesson(context.Background(), lesson.ID)
	if !got.UpdatedAt.Equal(lesson.UpdatedAt) || env.store.CountLessons() != 1 {
		t.Fatalf("store touched by unknown event")
	}
}

func TestWebhookMalformedAndMissingIDsAreAcknowledged(t *testing.T) {
	env := setupTestRouter(t)
	for _, body := range []string{
		`{not json`,
		`{"type":"video.asset.ready","data":{}}`,
		`{"type":"video.asset.deleted","data":{"id":"asset_404"}}`,
	} {
		rec := env.postWebhook(t, body, signed(body))
		if rec.Code != http.StatusOK || decodeAck(t, rec).Status != "ignored" {
			t.Fatalf("body %s: status=%d %s", body, rec.Code, rec.Body.String())
		}
	}
	if env.store.CountLessons() != 0 {
		t.Fatalf("ignored events created lessons")
	}
}

func TestWebhookRemoteFailureReturns500(t *testing.T) {
	env := setupTestRouter(t)
	seedLesson(t, env.store, model.Lesson{ID: "lesson-1", Video: model.VideoAsset{Status: model.AssetUploading, UploadID: "up_1"}})

	body := `{"type":"video.asset.ready","data":{"id":"asset_1","upload_id":"up_1"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", strings.NewReader(body))
	req.Header.Set("Mux-Signature", signed(body))
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error APIError `json:"error"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Error.Retryable {
		t.Fatalf("expected retryable error body, got %s", rec.Body.String())
	}
}

func TestPlaybackRequiresEnrollment(t *testing.T) {
	env := setupTestRouter(t)
	seedLesson(t, env.store, model.Lesson{
		ID:       "lesson-1",
		CourseID: "course-go",
		Video:    model.VideoAsset{Status: model.AssetReady, UploadID: "up_1", AssetID: "asset_1", PlaybackID: "pb_1"},
	})
	token := env.login(t, "student@learnstream.local", "student123")

	if rec := env.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playback", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playback", token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("unenrolled status=%d body=%s", rec.Code, rec.Body.String())
	}

	env.store.Enroll(env.student.ID, "course-go")
	first := env.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playback", token, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("enrolled status=%d body=%s", first.Code, first.Body.String())
	}
	var resp struct {
		Data playbackView `json:"data"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.Data.ManifestURL, "https://stream.example.com/pb_1.m3u8?token=") || resp.Data.PlaybackID != "pb_1" {
		t.Fatalf("unexpected playback response %s", first.Body.String())
	}
	if resp.Data.ThumbnailURL != "https://image.mux.com/pb_1/thumbnail.jpg" || resp.Data.WatchPageURL != "https://player.mux.com/pb_1" {
		t.Fatalf("links missing: %+v", resp.Data)
	}
	if resp.Data.Mux.AssetID != "asset_1" || resp.Data.Mux.Status != model.AssetReady ||
		!strings.Contains(resp.Data.EmbedIframe, `src="https://player.mux.com/pb_1"`) {
		t.Fatalf("summary or embed missing: %+v", resp.Data)
	}

	second := env.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playback", token, nil)
	var again struct {
		Data playbackView `json:"data"`
	}
	_ = json.Unmarshal(second.Body.Bytes(), &again)
	if again.Data.ManifestURL != resp.Data.ManifestURL {
		t.Fatalf("second request should be served from cache")
	}
}

func TestPlaybackNotReady(t *testing.T) {
	env := setupTestRouter(t)
	seedLesson(t, env.store, model.Lesson{ID: "lesson-1", CourseID: "c", Video: model.VideoAsset{Status: model.AssetCreated, UploadID: "up_1"}})
	token := env.login(t, "admin@learnstream.local", "admin12345")
	if rec := env.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playback", token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/lessons/missing/playback", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestPlaybackInvalidPlaybackIDIsNotAServerError(t *testing.T) {
	env := setupTestRouter(t)
	seedLesson(t, env.store, model.Lesson{ID: "lesson-1", Video: model.VideoAsset{Status: model.AssetReady, AssetID: "asset_1", PlaybackID: "pb/../1"}})
	admin := env.login(t, "admin@learnstream.local", "admin12345")
	rec := env.do(t, http.MethodGet, "/api/v1/lessons/lesson-1/playback", admin, nil)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "INVALID_PLAYBACK_ID") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAdminUploadThenWebhooks(t *testing.T) {
	env := setupTestRouter(t)
	student := env.login(t, "student@learnstream.local", "student123")
	if rec := env.do(t, http.MethodPost, "/api/v1/admin/uploads", student, map[string]any{"title": "x"}); rec.Code != http.StatusForbidden {
		t.Fatalf("student upload status=%d", rec.Code)
	}

	admin := env.login(t, "admin@learnstream.local", "admin12345")
	rec := env.do(t, http.MethodPost, "/api/v1/admin/uploads", admin, map[string]any{"title": "Channels", "course_id": "course-go"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create upload status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			Lesson    model.Lesson `json:"lesson"`
			UploadID  string       `json:"upload_id"`
			UploadURL string       `json:"upload_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.Data.UploadID == "" || created.Data.UploadURL == "" {
		t.Fatalf("decode upload: %v %s", err, rec.Body.String())
	}
	lessonID := created.Data.Lesson.ID

	body := `{"type":"video.upload.created","data":{"id":"` + created.Data.UploadID + `"}}`
	if rec := env.postWebhook(t, body, signed(body)); rec.Code != http.StatusOK {
		t.Fatalf("upload.created status=%d", rec.Code)
	}
	body = `{"type":"video.asset.ready","data":{"id":"asset_77","upload_id":"` + created.Data.UploadID + `"}}`
	if rec := env.postWebhook(t, body, signed(body)); rec.Code != http.StatusOK {
		t.Fatalf("asset.ready status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env.store.CountLessons() != 1 {
		t.Fatalf("lessons = %d", env.store.CountLessons())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/admin/lessons/"+lessonID, admin, nil)
	var got struct {
		Data model.Lesson `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Data.Video.Status != model.AssetReady || got.Data.Video.PlaybackID != "pb_77" || got.Data.Title != "Channels" {
		t.Fatalf("unexpected lesson %+v", got.Data)
	}
}

func TestAdminImportAsset(t *testing.T) {
	env := setupTestRouter(t)
	admin := env.login(t, "admin@learnstream.local", "admin12345")
	rec := env.do(t, http.MethodPost, "/api/v1/admin/uploads/import", admin, map[string]any{"asset_id": "asset_1", "title": "Imported"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/admin/uploads/import", admin, map[string]any{"asset_id": "asset_1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second import status=%d body=%s", rec.Code, rec.Body.String())
	}
	found, err := env.store.FindByIdentity(context.Background(), store.Identity{AssetID: "asset_1"})
	if err != nil || found.Video.UploadMethod != model.UploadImportExisting || found.Video.PlaybackID != "pb_1" {
		t.Fatalf("imported lesson %+v err=%v", found, err)
	}
}

func TestAdminImportFromURL(t *testing.T) {
	env := setupTestRouter(t)
	admin := env.login(t, "admin@learnstream.local", "admin12345")
	if rec := env.do(t, http.MethodPost, "/api/v1/admin/uploads/from-url", admin, map[string]any{"title": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing url status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/admin/uploads/from-url", admin, map[string]any{
		"url":       "https://cdn.example.com/intro.mp4",
		"title":     "Intro",
		"course_id": "course-go",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data model.Lesson `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	v := created.Data.Video
	if v.UploadMethod != model.UploadURLImport || v.AssetID == "" || v.Status != model.AssetCreated {
		t.Fatalf("unexpected video %+v", v)
	}

	body := `{"type":"video.asset.ready","data":{"id":"` + v.AssetID + `"}}`
	if rec := env.postWebhook(t, body, signed(body)); rec.Code != http.StatusOK || decodeAck(t, rec).Status != "ok" {
		t.Fatalf("asset.ready status=%d body=%s", rec.Code, rec.Body.String())
	}
	got, _ := env.store.GetLesson(context.Background(), created.Data.ID)
	if got.Video.Status != model.AssetReady || got.Video.PlaybackID != v.PlaybackID || got.Video.ThumbnailURL == "" {
		t.Fatalf("lesson not completed by webhook: %+v", got.Video)
	}
}

func TestIgnoredWebhooksAreLogged(t *testing.T) {
	env := setupTestRouter(t)
	unknown := `{"id":"evt_1","type":"video.live_stream.idle","data":{"id":"ls_1"}}`
	env.postWebhook(t, unknown, signed(unknown))
	env.postWebhook(t, `{not json`, signed(`{not json`))
	ready := `{"type":"video.asset.ready","data":{"id":"asset_1","upload_id":"up_1"}}`
	seedLesson(t, env.store, model.Lesson{ID: "lesson-1", Video: model.VideoAsset{Status: model.AssetUploading, UploadID: "up_1"}})
	env.postWebhook(t, ready, signed(ready))

	logs := env.store.WebhookLogs()
	if len(logs) != 2 {
		t.Fatalf("expected 2 logged deliveries, got %+v", logs)
	}
	if logs[0].EventType != "video.live_stream.idle" || logs[0].Reason != "unhandled event type" || string(logs[0].Payload) != unknown {
		t.Fatalf("unexpected log entry %+v", logs[0])
	}
	if logs[1].Reason != "malformed envelope" {
		t.Fatalf("unexpected log entry %+v", logs[1])
	}
}

func TestAuthErrorsAreMapped(t *testing.T) {
	env := setupTestRouter(t)
	if rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "student@learnstream.local", "password": "wrong-pass"}); rec.Code != http.StatusUnauthorized ||
		!strings.Contains(rec.Body.String(), "INVALID_CREDENTIALS") {
		t.Fatalf("bad password status=%d body=%s", rec.Code, rec.Body.String())
	}

	token := env.login(t, "student@learnstream.local", "student123")
	rec := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	var me struct {
		Data userView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil || me.Data.ID != env.student.ID || me.Data.IsAdmin {
		t.Fatalf("me status=%d body=%s", rec.Code, rec.Body.String())
	}

	suspended := env.student
	suspended.Status = "suspended"
	env.store.UpsertUser(suspended)
	if rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "student@learnstream.local", "password": "student123"}); rec.Code != http.StatusForbidden ||
		!strings.Contains(rec.Body.String(), "ACCOUNT_INACTIVE") {
		t.Fatalf("inactive login status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/me", token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("inactive me status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLessonEventsStream(t *testing.T) {
	env := setupTestRouter(t)
	seedLesson(t, env.store, model.Lesson{ID: "lesson-1", Video: model.VideoAsset{Status: model.AssetUploading, UploadID: "up_1"}})
	admin := env.login(t, "admin@learnstream.local", "admin12345")

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/admin/lessons/lesson-1/events", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type=%q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
			if line == "" && data != "" {
				return data
			}
		}
	}
	if first := readEvent(); !strings.Contains(first, `"state":"uploading"`) {
		t.Fatalf("initial event %s", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers("lesson-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec := env.postWebhook(t, readyBody, signed(readyBody)); rec.Code != http.StatusOK {
		t.Fatalf("webhook status=%d", rec.Code)
	}
	if next := readEvent(); !strings.Contains(next, `"state":"ready"`) {
		t.Fatalf("transition event %s", next)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	body := `{"type":"video.something.unheard_of","data":{}}`
	env.postWebhook(t, body, signed(body))
	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "learnstream_webhook_events_total") {
		t.Fatalf("metrics status=%d body=%s", rec.Code, rec.Body.String())
	}
}
