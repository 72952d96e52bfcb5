package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/newvision-backend/models"
	"github.com/phillip/newvision-backend/store"
	"github.com/phillip/newvision-backend/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session expired or revoked")
)

// Auth issues admin tokens. Every token is backed by a session document,
// so signing out takes effect before the token expires.
type Auth struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(st store.Store, secret []byte, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{store: st, secret: secret, ttl: ttl, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAdmin stores a new admin with a bcrypt password hash.
func (a *Auth) CreateAdmin(ctx context.Context, name, email, password string) (*models.Admin, error) {
	verr := &ValidationError{}
	email = normalizeEmail(email)
	if email == "" {
		verr.add("email", "is required")
	}
	verr.email("email", email)
	if len(password) < 8 {
		verr.add("password", "must be at least 8 characters")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	n, err := a.store.Count(ctx, store.Admins, bson.M{"email": email})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("admin %s: %w", email, store.ErrDuplicate)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	admin := models.Admin{
		ID:           primitive.NewObjectID(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         "admin",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.Insert(ctx, store.Admins, admin); err != nil {
		return nil, err
	}
	return &admin, nil
}

// Login checks the credentials and opens a session.
func (a *Auth) Login(ctx context.Context, email, password string) (string, *models.Admin, error) {
	var admins []models.Admin
	err := a.store.Find(ctx, store.Admins, bson.M{"email": normalizeEmail(email)}, store.FindOptions{Limit: 1}, &admins)
	if err != nil {
		return "", nil, err
	}
	if len(admins) == 0 || !utils.CheckPasswordHash(password, admins[0].PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}
	admin := admins[0]

	now := a.now()
	token, claims, err := utils.GenerateToken(a.secret, admin.ID.Hex(), admin.Name, admin.Email, admin.Role, a.ttl, now)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	session := models.Session{
		ID:        claims.SessionID(),
		AdminID:   admin.ID,
		AdminName: admin.Name,
		Email:     admin.Email,
		Role:      admin.Role,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: now,
	}
	if err := a.store.Insert(ctx, store.Sessions, session); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}
	if err := a.store.UpdateByID(ctx, store.Admins, admin.ID, bson.M{"last_login": now}); err != nil {
		return "", nil, err
	}
	admin.LastLogin = &now
	return token, &admin, nil
}

// Authenticate resolves a bearer token to its live session.
func (a *Auth) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := utils.ParseToken(a.secret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	var session models.Session
	if err := a.store.FindByID(ctx, store.Sessions, claims.SessionID(), &session); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if !session.ExpiresAt.After(a.now()) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	err := a.store.DeleteByID(ctx, store.Sessions, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
