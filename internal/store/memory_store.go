package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"learnstream/server/internal/model"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrNoIdentity = errors.New("no upload or asset id to match")
)

// MemoryStore keeps users, lessons and enrollments in process. It backs
// local development and tests; lessons and enrollments have Mongo and
// Postgres counterparts.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[string]model.User
	userByEmail map[string]string

	refreshTokens map[string]model.RefreshToken

	lessons     map[string]model.Lesson
	enrollments map[string]struct{}
	webhookLogs []model.WebhookLog

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]model.User{},
		userByEmail:   map[string]string{},
		refreshTokens: map[string]model.RefreshToken{},
		lessons:       map[string]model.Lesson{},
		enrollments:   map[string]struct{}{},
		now:           time.Now,
	}
}

func (s *MemoryStore) UpsertUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	s.userByEmail[strings.ToLower(user.Email)] = user.ID
}

func (s *MemoryStore) GetUserByEmail(email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userByEmail[strings.ToLower(email)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	user, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByID(id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) SaveRefreshToken(tok model.RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[tok.ID] = tok
}

func (s *MemoryStore) GetRefreshToken(id string) (model.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.refreshTokens[id]
	if !ok {
		return model.RefreshToken{}, ErrNotFound
	}
	return tok, nil
}

func (s *MemoryStore) RevokeRefreshToken(id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.refreshTokens[id]
	if !ok {
		return ErrNotFound
	}
	tok.RevokedAt = &revokedAt
	s.refreshTokens[id] = tok
	return nil
}

// CreateLesson stores a new lesson. It fails with ErrConflict when another
// lesson already claims the same upload or asset id.
func (s *MemoryStore) CreateLesson(_ context.Context, lesson model.Lesson) (model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lesson.ID]; ok {
		return model.Lesson{}, ErrConflict
	}
	id := Identity{UploadID: lesson.Video.UploadID, AssetID: lesson.Video.AssetID}
	if !id.IsZero() {
		for _, l := range s.lessons {
			if id.claims(l) {
				return model.Lesson{}, ErrConflict
			}
		}
	}
	s.lessons[lesson.ID] = lesson
	return lesson, nil
}

func (s *MemoryStore) GetLesson(_ context.Context, lessonID string) (model.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[lessonID]
	if !ok {
		return model.Lesson{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) FindByIdentity(_ context.Context, id Identity) (model.Lesson, error) {
	if id.IsZero() {
		return model.Lesson{}, ErrNoIdentity
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.firstMatchLocked(id)
	if !ok {
		return model.Lesson{}, ErrNotFound
	}
	return l, nil
}

// UpdateByIdentity applies upd to the first lesson matching id.
func (s *MemoryStore) UpdateByIdentity(_ context.Context, id Identity, upd *LessonUpdate) (model.Lesson, error) {
	if id.IsZero() {
		return model.Lesson{}, ErrNoIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.firstMatchLocked(id)
	if !ok {
		return model.Lesson{}, ErrNotFound
	}
	if claimed := upd.claimedIdentity(); !claimed.IsZero() {
		for otherID, other := range s.lessons {
			if otherID != l.ID && claimed.claims(other) {
				return model.Lesson{}, ErrConflict
			}
		}
	}
	now := s.now().UTC()
	if !now.After(l.UpdatedAt) {
		now = l.UpdatedAt.Add(time.Microsecond)
	}
	upd.apply(&l, now)
	s.lessons[l.ID] = l
	return l, nil
}

// InsertIfAbsent stores draft unless a lesson already matches its upload id.
// The existing lesson is returned untouched in that case.
func (s *MemoryStore) InsertIfAbsent(_ context.Context, draft model.Lesson) (model.Lesson, bool, error) {
	id := Identity{UploadID: draft.Video.UploadID}
	if id.IsZero() {
		return model.Lesson{}, false, ErrNoIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.firstMatchLocked(id); ok {
		return existing, false, nil
	}
	if _, ok := s.lessons[draft.ID]; ok {
		return model.Lesson{}, false, ErrConflict
	}
	s.lessons[draft.ID] = draft
	return draft, true, nil
}

func (s *MemoryStore) CountLessons() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lessons)
}

// firstMatchLocked picks the oldest matching lesson so the choice is stable
// if duplicates ever slip in.
func (s *MemoryStore) firstMatchLocked(id Identity) (model.Lesson, bool) {
	var matches []model.Lesson
	for _, l := range s.lessons {
		if id.matches(l) {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return model.Lesson{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches[0], true
}

func (s *MemoryStore) Enroll(userID, courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[userID+":"+courseID] = struct{}{}
}

func (s *MemoryStore) IsEnrolled(_ context.Context, userID, courseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.enrollments[userID+":"+courseID]
	return ok, nil
}

func (s *MemoryStore) LogWebhook(_ context.Context, entry model.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Payload = append([]byte(nil), entry.Payload...)
	s.webhookLogs = append(s.webhookLogs, entry)
	return nil
}

func (s *MemoryStore) WebhookLogs() []model.WebhookLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.WebhookLog(nil), s.webhookLogs...)
}
