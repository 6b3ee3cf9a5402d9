package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockClient stands in for the provider when no API credentials are
// configured. Assets are synthesized on first fetch and stay stable.
type MockClient struct {
	mu     sync.Mutex
	assets map[string]Asset
}

func NewMockClient() *MockClient {
	return &MockClient{assets: map[string]Asset{}}
}

// PutAsset registers the asset returned for its id.
func (m *MockClient) PutAsset(a Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
}

func (m *MockClient) FetchAsset(ctx context.Context, assetID string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, &Error{Category: "canceled", Code: "CANCELED", Retryable: true, UserMessage: "Request canceled", InternalMessage: err.Error()}
	}
	if assetID == "" {
		return Asset{}, &Error{Category: "request", Code: "MISSING_ASSET_ID", UserMessage: "Asset id required", InternalMessage: "empty asset id"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assets[assetID]; ok {
		return a, nil
	}
	duration := 60.0
	a := Asset{
		ID:          assetID,
		Status:      "ready",
		PlaybackIDs: []PlaybackID{{ID: "pb_" + strings.TrimPrefix(assetID, "asset_"), Policy: "signed"}},
		Duration:    &duration,
		Tracks:      []Track{{ID: uuid.NewString(), Type: "video", Duration: duration}},
	}
	m.assets[assetID] = a
	return a, nil
}

func (m *MockClient) CreateUpload(ctx context.Context, req UploadRequest) (Upload, error) {
	if err := ctx.Err(); err != nil {
		return Upload{}, &Error{Category: "canceled", Code: "CANCELED", Retryable: true, UserMessage: "Request canceled", InternalMessage: err.Error()}
	}
	id := "up_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Upload{
		ID:      id,
		URL:     "https://storage.local/uploads/" + id,
		Status:  "waiting",
		Timeout: 3600,
	}, nil
}

// CreateAsset registers a preparing asset. A later FetchAsset returns it
// unchanged until PutAsset replaces it.
func (m *MockClient) CreateAsset(ctx context.Context, req AssetRequest) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, &Error{Category: "canceled", Code: "CANCELED", Retryable: true, UserMessage: "Request canceled", InternalMessage: err.Error()}
	}
	if req.InputURL == "" {
		return Asset{}, &Error{Category: "request", Code: "MISSING_INPUT_URL", UserMessage: "Video URL required", InternalMessage: "empty input url"}
	}
	policy := req.PlaybackPolicy
	if policy == "" {
		policy = "signed"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	a := Asset{
		ID:          "asset_" + suffix,
		Status:      "preparing",
		PlaybackIDs: []PlaybackID{{ID: "pb_" + suffix, Policy: policy}},
		Passthrough: req.Passthrough,
	}
	m.PutAsset(a)
	return a, nil
}
