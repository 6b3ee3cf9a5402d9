package model

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// AssetState is the provider-side lifecycle state mirrored on a lesson.
type AssetState string

const (
	AssetUploading       AssetState = "uploading"
	AssetUploadCreated   AssetState = "upload_created"
	AssetUploadCancelled AssetState = "upload_cancelled"
	AssetUploadError     AssetState = "upload_error"
	AssetCreated         AssetState = "asset_created"
	AssetReady           AssetState = "ready"
	AssetErrored         AssetState = "errored"
	AssetDeleted         AssetState = "deleted"
)

// Terminal reports whether no further automatic transition is expected.
func (s AssetState) Terminal() bool {
	switch s {
	case AssetUploadCancelled, AssetUploadError, AssetErrored, AssetDeleted:
		return true
	}
	return false
}

type UploadMethod string

const (
	UploadDirect         UploadMethod = "direct_upload"
	UploadImportExisting UploadMethod = "import_existing"
	UploadWebhook        UploadMethod = "webhook"
	UploadURLImport      UploadMethod = "url-import"
)

type Track struct {
	ID           string  `json:"id,omitempty" bson:"id,omitempty"`
	Type         string  `json:"type,omitempty" bson:"type,omitempty"`
	Name         string  `json:"name,omitempty" bson:"name,omitempty"`
	LanguageCode string  `json:"language_code,omitempty" bson:"language_code,omitempty"`
	Duration     float64 `json:"duration,omitempty" bson:"duration,omitempty"`
}

// VideoAsset is the sub-document of a lesson owned by the asset lifecycle.
type VideoAsset struct {
	Status       AssetState   `json:"status" bson:"status"`
	UploadID     string       `json:"upload_id,omitempty" bson:"upload_id,omitempty"`
	AssetID      string       `json:"asset_id,omitempty" bson:"asset_id,omitempty"`
	PlaybackID   string       `json:"playback_id,omitempty" bson:"playback_id,omitempty"`
	Duration     *float64     `json:"duration,omitempty" bson:"duration,omitempty"`
	Tracks       []Track      `json:"tracks,omitempty" bson:"tracks,omitempty"`
	Visibility   string       `json:"visibility,omitempty" bson:"visibility,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty" bson:"thumbnail_url,omitempty"`
	ManifestURL  string       `json:"manifest_url,omitempty" bson:"manifest_url,omitempty"`
	WatchPageURL string       `json:"watch_page_url,omitempty" bson:"watch_page_url,omitempty"`
	UploadMethod UploadMethod `json:"upload_method,omitempty" bson:"upload_method,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty" bson:"error_message,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at" bson:"updated_at"`
}

// LegacyVideo holds identifiers written under the old "video" field name.
// Deprecated: only read for matching until old lesson records are migrated.
type LegacyVideo struct {
	UploadID string     `json:"upload_id,omitempty" bson:"upload_id,omitempty"`
	AssetID  string     `json:"asset_id,omitempty" bson:"asset_id,omitempty"`
	Status   AssetState `json:"status,omitempty" bson:"status,omitempty"`
}

type Lesson struct {
	ID          string       `json:"id" bson:"_id"`
	CourseID    string       `json:"course_id,omitempty" bson:"course_id,omitempty"`
	Title       string       `json:"title" bson:"title"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Video       VideoAsset   `json:"mux" bson:"mux"`
	Legacy      *LegacyVideo `json:"video,omitempty" bson:"video,omitempty"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
}

type LessonEventType string

const (
	EventLessonDrafted      LessonEventType = "lesson_drafted"
	EventLessonStateChanged LessonEventType = "lesson_state_changed"
)

// LessonEvent is published to admin subscribers after a lifecycle write.
type LessonEvent struct {
	EventID     string          `json:"event_id"`
	LessonID    string          `json:"lesson_id"`
	Type        LessonEventType `json:"type"`
	State       AssetState      `json:"state"`
	SourceEvent string          `json:"source_event,omitempty"`
	TS          time.Time       `json:"ts"`
}

// WebhookLog records a provider delivery that changed no lesson.
type WebhookLog struct {
	ReceivedAt time.Time
	EventType  string
	EventID    string
	Reason     string
	Payload    []byte
}
