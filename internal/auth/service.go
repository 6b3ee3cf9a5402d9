package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"learnstream/server/internal/model"
	"learnstream/server/internal/store"
)

const issuer = "learnstream-server"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrUserInactive = errors.New("user inactive")
)

// UserStore holds accounts and refresh tokens.
type UserStore interface {
	UpsertUser(user model.User)
	GetUserByEmail(email string) (model.User, error)
	GetUserByID(id string) (model.User, error)
	SaveRefreshToken(tok model.RefreshToken)
	GetRefreshToken(id string) (model.RefreshToken, error)
	RevokeRefreshToken(id string, revokedAt time.Time) error
}

type Claims struct {
	UserID string         `json:"uid"`
	Email  string         `json:"email"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresInSec int64  `json:"expires_in_sec"`
}

type Service struct {
	users      UserStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(users UserStore, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// SeedUser creates an account unless the email is already taken.
func (s *Service) SeedUser(email, password string, role model.UserRole) (model.User, error) {
	if existing, err := s.users.GetUserByEmail(email); err == nil {
		return existing, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password for %s: %w", email, err)
	}
	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users.UpsertUser(user)
	return user, nil
}

func (s *Service) Login(email, password string) (model.User, Tokens, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return model.User{}, Tokens{}, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, Tokens{}, ErrUnauthorized
	}
	if !active(user) {
		return model.User{}, Tokens{}, ErrUserInactive
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	return user, tokens, nil
}

func (s *Service) ParseAccess(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Claims{}, ErrUnauthorized
	}
	return *claims, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(refreshToken string) (Tokens, error) {
	tokenID, ok := parseRefreshTokenID(refreshToken)
	if !ok {
		return Tokens{}, ErrUnauthorized
	}
	stored, err := s.users.GetRefreshToken(tokenID)
	if err != nil || stored.RevokedAt != nil {
		return Tokens{}, ErrUnauthorized
	}
	now := s.now().UTC()
	if stored.ExpiresAt.Before(now) {
		return Tokens{}, ErrTokenExpired
	}
	if !equalHash(stored.TokenHash, hashToken(refreshToken)) {
		return Tokens{}, ErrUnauthorized
	}
	user, err := s.users.GetUserByID(stored.UserID)
	if err != nil {
		return Tokens{}, ErrUnauthorized
	}
	if !active(user) {
		return Tokens{}, ErrUserInactive
	}
	if err := s.users.RevokeRefreshToken(stored.ID, now); err != nil {
		return Tokens{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issueTokens(user)
}

func (s *Service) Logout(refreshToken string) error {
	tokenID, ok := parseRefreshTokenID(refreshToken)
	if !ok {
		return ErrUnauthorized
	}
	if err := s.users.RevokeRefreshToken(tokenID, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

// active treats an empty status as active for accounts created before
// statuses were tracked.
func active(user model.User) bool {
	return user.Status == "" || user.Status == "active"
}

// IssueAccess signs an access token for user without a refresh token.
func (s *Service) IssueAccess(user model.User) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access, nil
}

func (s *Service) issueTokens(user model.User) (Tokens, error) {
	access, err := s.IssueAccess(user)
	if err != nil {
		return Tokens{}, err
	}
	now := s.now().UTC()
	refreshID := uuid.NewString()
	refreshToken := "rt_" + refreshID + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.users.SaveRefreshToken(model.RefreshToken{
		ID:        refreshID,
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	})
	return Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresInSec: int64(s.accessTTL.Seconds()),
	}, nil
}

func parseRefreshTokenID(refreshToken string) (string, bool) {
	rest, ok := strings.CutPrefix(refreshToken, "rt_")
	if !ok {
		return "", false
	}
	id, secret, ok := strings.Cut(rest, "_")
	if !ok || id == "" || secret == "" {
		return "", false
	}
	return id, true
}

func hashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func equalHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
