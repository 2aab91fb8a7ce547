package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"clinic/backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	Secret        []byte
	TTL           time.Duration
	AdminEmail    string
	AdminRole     string
	AdminPassword string
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db  *DB
	cfg AuthConfig
	log zerolog.Logger
	now func() time.Time
}

func NewAuthService(db *DB, cfg AuthConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
		log: log.With().Str("component", "auth").Logger(),
		now: time.Now,
	}
}

// Register creates an account. Anyone may sign up as a patient; every other
// role needs an administrator as actorRole.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, actorRole string) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Phone == "" || req.Role == "" {
		return nil, fmt.Errorf("%w: name, email, password, phone and role are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if !slices.Contains(model.Roles, req.Role) {
		return nil, fmt.Errorf("%w: role must be one of %s", ErrInvalidInput, strings.Join(model.Roles, ", "))
	}
	if req.Role != model.RolePatient && actorRole != s.cfg.AdminRole {
		return nil, fmt.Errorf("%w: only an administrator can register %s accounts", ErrForbidden, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{Name: req.Name, Email: req.Email, Phone: req.Phone, Role: req.Role, CreatedAt: s.now().UTC()}
	err = s.db.QueryRowContext(ctx,
		s.db.Rebind(`INSERT INTO users (name, email, password, phone, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		u.Name, u.Email, string(hash), u.Phone, u.Role, u.CreatedAt, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, engineErr("create user", err)
	}
	s.log.Info().Int64("user_id", u.ID).Str("role", u.Role).Msg("user registered")
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	u, hash, err := s.userByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	token, expires, err := s.issueToken(u)
	if err != nil {
		return nil, err
	}
	return &model.LoginResult{User: u, Token: token, ExpiresAt: expires}, nil
}

func (s *AuthService) issueToken(u *model.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.TTL)
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(u.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates an HS256 access token.
func (s *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	return claims, nil
}

func (s *AuthService) UserByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT id, name, email, phone, role, created_at FROM users WHERE id = ?`), id,
	).Scan(&u.ID, &u.Name, &u.Email, &phone, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("get user", err)
	}
	u.Phone = phone.String
	return u, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*model.User, string, error) {
	u := &model.User{}
	var (
		phone sql.NullString
		hash  string
	)
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT id, name, email, phone, role, password, created_at FROM users WHERE email = ?`), email,
	).Scan(&u.ID, &u.Name, &u.Email, &phone, &u.Role, &hash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", engineErr("get user", err)
	}
	u.Phone = phone.String
	return u, hash, nil
}

// SystemStatus reports whether any account exists, seeding the default admin
// on an empty users table.
func (s *AuthService) SystemStatus(ctx context.Context) (*model.SystemStatus, error) {
	created, err := s.SeedAdmin(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, engineErr("count users", err)
	}

	status := &model.SystemStatus{TotalUsers: total, HasUsers: total > 0, DefaultAdminCreated: created}
	if u, _, err := s.userByEmail(ctx, strings.ToLower(s.cfg.AdminEmail)); err == nil && u.Role == s.cfg.AdminRole {
		status.AdminAccount = &model.AdminAccount{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return status, nil
}

// SeedAdmin creates the default admin when the users table is empty.
func (s *AuthService) SeedAdmin(ctx context.Context) (bool, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return false, engineErr("count users", err)
	}
	if total > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO users (name, email, password, phone, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		"System Administrator", strings.ToLower(s.cfg.AdminEmail), string(hash), "", s.cfg.AdminRole, now, now,
	)
	if err != nil {
		return false, engineErr("seed admin", err)
	}
	s.log.Warn().Str("email", s.cfg.AdminEmail).Msg("default admin account created, change its password")
	return true, nil
}
