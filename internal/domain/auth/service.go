// Package auth implements registration and login. Register creates the
// business (tenant) and its owner account in one transaction.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	domainaudit "github.com/matiasleandrokruk/agentdesk/internal/domain/audit"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	pkgauth "github.com/matiasleandrokruk/agentdesk/pkg/auth"
	"github.com/matiasleandrokruk/agentdesk/pkg/uuid"
)

// ErrInvalidCredentials is returned by Login when email or password is
// incorrect. One error covers both so callers cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailAlreadyExists is returned by Register when the email is already taken.
var ErrEmailAlreadyExists = errors.New("email already registered")

// ErrInvalidInput is returned by Register for missing or malformed fields.
var ErrInvalidInput = errors.New("invalid registration input")

const minPasswordLength = 8

// RegisterInput holds the data needed to create a business and its owner.
type RegisterInput struct {
	Email        string
	Password     string
	DisplayName  string
	BusinessName string
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Result is returned after successful Register or Login.
type Result struct {
	Token      string
	UserID     string
	BusinessID string
}

// Service is the authentication service backed by SQLite.
type Service struct {
	db          *sql.DB
	tokens      *pkgauth.TokenIssuer
	auditLogger auditLogger
	now         func() time.Time
}

type auditLogger interface {
	LogWithDetails(
		ctx context.Context,
		businessID string,
		actorID string,
		actorType domainaudit.ActorType,
		action string,
		entityType *string,
		entityID *string,
		details *domainaudit.EventDetails,
		outcome domainaudit.Outcome,
	) error
}

// NewService creates an auth service. logger may be nil.
func NewService(db *sql.DB, tokens *pkgauth.TokenIssuer, logger auditLogger) *Service {
	return &Service{db: db, tokens: tokens, auditLogger: logger, now: time.Now}
}

// Register creates a new business and owner user, then returns a JWT.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	input.Email = normalizeEmail(input.Email)
	input.BusinessName = strings.TrimSpace(input.BusinessName)
	if err := validateRegister(input); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	businessID := uuid.NewV7()
	userID := uuid.NewV7()
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = input.Email
	}

	if err := s.insertBusinessAndUser(ctx, insertParams{
		businessID:   businessID,
		userID:       userID,
		businessName: input.BusinessName,
		email:        input.Email,
		passwordHash: hash,
		displayName:  displayName,
	}); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(userID, businessID)
	if err != nil {
		s.logAuthFailure(ctx, businessID, userID, "register", "jwt_generation_failed")
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	s.logAuthSuccess(ctx, businessID, userID, "register")
	return &Result{Token: token, UserID: userID, BusinessID: businessID}, nil
}

func validateRegister(in RegisterInput) error {
	if in.BusinessName == "" {
		return fmt.Errorf("%w: businessName is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

type insertParams struct {
	businessID   string
	userID       string
	businessName string
	email        string
	passwordHash string
	displayName  string
}

func (s *Service) insertBusinessAndUser(ctx context.Context, p insertParams) error {
	now := sqlite.FormatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO business (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, p.businessID, p.businessName, now, now); err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_account (id, business_id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.userID, p.businessID, p.email, p.displayName, p.passwordHash, now, now); err != nil {
		if sqlite.IsUniqueViolation(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return tx.Commit()
}

// Login verifies credentials and returns a JWT.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Result, error) {
	var userID, businessID, passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, password_hash
		FROM user_account
		WHERE email = ?
		LIMIT 1
	`, normalizeEmail(input.Email)).Scan(&userID, &businessID, &passwordHash)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	if !pkgauth.VerifyPassword(passwordHash, input.Password) {
		s.logAuthFailure(ctx, businessID, userID, "login", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(userID, businessID)
	if err != nil {
		s.logAuthFailure(ctx, businessID, userID, "login", "jwt_generation_failed")
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	s.logAuthSuccess(ctx, businessID, userID, "login")
	return &Result{Token: token, UserID: userID, BusinessID: businessID}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) logAuthSuccess(ctx context.Context, businessID, userID, action string) {
	if s.auditLogger == nil {
		return
	}
	_ = s.auditLogger.LogWithDetails(ctx, businessID, userID, domainaudit.ActorTypeUser,
		"auth."+action, nil, nil, nil, domainaudit.OutcomeSuccess)
}

func (s *Service) logAuthFailure(ctx context.Context, businessID, userID, action, reason string) {
	if s.auditLogger == nil {
		return
	}
	_ = s.auditLogger.LogWithDetails(ctx, businessID, userID, domainaudit.ActorTypeUser,
		"auth."+action, nil, nil,
		&domainaudit.EventDetails{Metadata: map[string]any{"reason": reason}},
		domainaudit.OutcomeError,
	)
}
