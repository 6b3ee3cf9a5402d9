package store

import "learnstream/server/internal/model"

// Identity is the provider-side key of a lesson. Either id may be empty;
// a record matching any non-empty id is treated as the same lesson.
type Identity struct {
	UploadID string
	AssetID  string
}

func (i Identity) IsZero() bool {
	return i.UploadID == "" && i.AssetID == ""
}

// matches checks the canonical fields first and then the legacy "video" names.
func (i Identity) matches(l model.Lesson) bool {
	if i.UploadID != "" && l.Video.UploadID == i.UploadID {
		return true
	}
	if i.AssetID != "" && l.Video.AssetID == i.AssetID {
		return true
	}
	if l.Legacy == nil {
		return false
	}
	if i.UploadID != "" && l.Legacy.UploadID == i.UploadID {
		return true
	}
	return i.AssetID != "" && l.Legacy.AssetID == i.AssetID
}

// claims reports whether l already owns one of the canonical ids in i.
func (i Identity) claims(l model.Lesson) bool {
	return (i.UploadID != "" && l.Video.UploadID == i.UploadID) ||
		(i.AssetID != "" && l.Video.AssetID == i.AssetID)
}
