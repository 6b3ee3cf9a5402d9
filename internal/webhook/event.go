package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedEnvelope = errors.New("malformed webhook envelope")

const FallbackTitle = "Untitled Video"

// Provider event type names.
const (
	TypeUploadCreated   = "video.upload.created"
	TypeUploadCancelled = "video.upload.cancelled"
	TypeUploadErrored   = "video.upload.errored"
	TypeAssetCreated    = "video.asset.created"
	TypeAssetReady      = "video.asset.ready"
	TypeAssetErrored    = "video.asset.errored"
	TypeAssetDeleted    = "video.asset.deleted"
)

// Event is one normalized provider event. The concrete type tells which
// identifiers the provider guarantees for that kind.
type Event interface {
	Type() string
	EventID() string
}

type Meta struct {
	ID   string
	Kind string
}

func (m Meta) Type() string    { return m.Kind }
func (m Meta) EventID() string { return m.ID }

type UploadCreated struct {
	Meta
	UploadID    string
	AssetID     string
	Title       string
	Passthrough string
}

type UploadCancelled struct {
	Meta
	UploadID string
}

type UploadErrored struct {
	Meta
	UploadID string
	Message  string
}

type AssetCreated struct {
	Meta
	AssetID  string
	UploadID string
	Title    string
}

type AssetReady struct {
	Meta
	AssetID    string
	UploadID   string
	PlaybackID string
	Policy     string
	Duration   *float64
	Tracks     []Track
	Title      string
}

type AssetErrored struct {
	Meta
	AssetID  string
	UploadID string
	Message  string
}

type AssetDeleted struct {
	Meta
	AssetID string
}

// Unknown is any event type this service does not act on.
type Unknown struct {
	Meta
}

type Track struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	LanguageCode string  `json:"language_code"`
	Duration     float64 `json:"duration"`
}

type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

type titleMeta struct {
	Title string `json:"title"`
}

// Data is the provider's "data" object, shared by upload and asset events.
type Data struct {
	ID               string          `json:"id"`
	UploadID         string          `json:"upload_id"`
	AssetID          string          `json:"asset_id"`
	Status           string          `json:"status"`
	Passthrough      string          `json:"passthrough"`
	PlaybackIDs      []PlaybackID    `json:"playback_ids"`
	Duration         *float64        `json:"duration"`
	Tracks           []Track         `json:"tracks"`
	Meta             titleMeta       `json:"meta"`
	Metadata         titleMeta       `json:"metadata"`
	Errors           json.RawMessage `json:"errors"`
	NewAssetSettings struct {
		Meta        titleMeta `json:"meta"`
		Passthrough string    `json:"passthrough"`
	} `json:"new_asset_settings"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Normalize parses a raw provider envelope. Unknown types come back as
// Unknown, never as an error.
func Normalize(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	meta := Meta{ID: env.ID, Kind: env.Type}

	var data Data
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrMalformedEnvelope, err)
		}
	}

	switch env.Type {
	case TypeUploadCreated:
		return UploadCreated{
			Meta:        meta,
			UploadID:    data.uploadKey(),
			AssetID:     data.AssetID,
			Title:       ResolveTitle(data),
			Passthrough: firstNonEmpty(data.NewAssetSettings.Passthrough, data.Passthrough),
		}, nil
	case TypeUploadCancelled:
		return UploadCancelled{Meta: meta, UploadID: data.uploadKey()}, nil
	case TypeUploadErrored:
		return UploadErrored{Meta: meta, UploadID: data.uploadKey(), Message: data.Error.Message}, nil
	case TypeAssetCreated:
		return AssetCreated{Meta: meta, AssetID: data.ID, UploadID: data.UploadID, Title: ResolveTitle(data)}, nil
	case TypeAssetReady:
		ready := AssetReady{
			Meta:     meta,
			AssetID:  data.ID,
			UploadID: data.UploadID,
			Duration: data.Duration,
			Tracks:   data.Tracks,
			Title:    ResolveTitle(data),
		}
		if len(data.PlaybackIDs) > 0 {
			ready.PlaybackID = data.PlaybackIDs[0].ID
			ready.Policy = data.PlaybackIDs[0].Policy
		}
		return ready, nil
	case TypeAssetErrored:
		return AssetErrored{Meta: meta, AssetID: data.ID, UploadID: data.UploadID, Message: errorMessage(data.Errors)}, nil
	case TypeAssetDeleted:
		return AssetDeleted{Meta: meta, AssetID: data.ID}, nil
	default:
		return Unknown{Meta: meta}, nil
	}
}

// ResolveTitle picks the display title: upload settings meta, then asset
// meta, then the first named track, then FallbackTitle.
func ResolveTitle(data Data) string {
	if t := strings.TrimSpace(data.NewAssetSettings.Meta.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(firstNonEmpty(data.Meta.Title, data.Metadata.Title)); t != "" {
		return t
	}
	for _, track := range data.Tracks {
		if name := strings.TrimSpace(track.Name); name != "" {
			return name
		}
	}
	return FallbackTitle
}

func (d Data) uploadKey() string {
	return firstNonEmpty(d.ID, d.UploadID)
}

// errorMessage accepts both {"type":..,"messages":[..]} and [{"message":..}].
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Type     string   `json:"type"`
		Messages []string `json:"messages"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if len(obj.Messages) > 0 {
			return strings.Join(obj.Messages, "; ")
		}
		return obj.Type
	}
	var list []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].Message
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
