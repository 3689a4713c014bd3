package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	domainaudit "github.com/matiasleandrokruk/agentdesk/internal/domain/audit"
	domainauth "github.com/matiasleandrokruk/agentdesk/internal/domain/auth"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	pkgauth "github.com/matiasleandrokruk/agentdesk/pkg/auth"
)

type recordedAudit struct {
	businessID string
	action     string
	outcome    domainaudit.Outcome
}

type stubAuditLogger struct {
	mu     sync.Mutex
	events []recordedAudit
}

func (s *stubAuditLogger) LogWithDetails(_ context.Context, businessID, _ string, _ domainaudit.ActorType,
	action string, _, _ *string, _ *domainaudit.EventDetails, outcome domainaudit.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedAudit{businessID: businessID, action: action, outcome: outcome})
	return nil
}

func newService(t *testing.T) (*domainauth.Service, *pkgauth.TokenIssuer, *stubAuditLogger, *sql.DB) {
	t.Helper()
	db := mustOpenDB(t)
	tokens, err := pkgauth.NewTokenIssuer("test-secret-key-32-chars-min!!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	logger := &stubAuditLogger{}
	return domainauth.NewService(db, tokens, logger), tokens, logger, db
}

var alice = domainauth.RegisterInput{
	Email:        "Alice@Acme.com ",
	Password:     "SecurePass123!",
	DisplayName:  "Alice",
	BusinessName: "Acme Dental",
}

// ===== REGISTER TESTS =====

func TestRegister_CreatesBusinessAndUser(t *testing.T) {
	t.Parallel()

	svc, tokens, logger, db := newService(t)
	result, err := svc.Register(context.Background(), alice)
	if err != nil {
		t.Fatalf("Register() error = %v; want nil", err)
	}
	if result.Token == "" || result.UserID == "" || result.BusinessID == "" {
		t.Fatalf("Register() returned incomplete result %+v", result)
	}

	claims, err := tokens.Parse(result.Token)
	if err != nil {
		t.Fatalf("returned token is not valid: %v", err)
	}
	if claims.UserID != result.UserID || claims.BusinessID != result.BusinessID {
		t.Errorf("claims %+v do not match result %+v", claims, result)
	}

	var name, email, hash string
	if err := db.QueryRow(`SELECT b.name, u.email, u.password_hash FROM user_account u JOIN business b ON b.id = u.business_id WHERE u.id = ?`,
		result.UserID).Scan(&name, &email, &hash); err != nil {
		t.Fatalf("query user: %v", err)
	}
	if name != "Acme Dental" {
		t.Errorf("business name = %q", name)
	}
	if email != "alice@acme.com" {
		t.Errorf("email should be normalized, got %q", email)
	}
	if hash == alice.Password || !pkgauth.VerifyPassword(hash, alice.Password) {
		t.Error("password must be stored as a bcrypt hash")
	}

	if len(logger.events) != 1 || logger.events[0].action != "auth.register" || logger.events[0].outcome != domainaudit.OutcomeSuccess {
		t.Errorf("expected auth.register success audit, got %+v", logger.events)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _, _, db := newService(t)
	if _, err := svc.Register(context.Background(), alice); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	dup := alice
	dup.Email = "alice@acme.com"
	dup.BusinessName = "Other"
	if _, err := svc.Register(context.Background(), dup); !errors.Is(err, domainauth.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	var businesses int
	if err := db.QueryRow(`SELECT COUNT(*) FROM business`).Scan(&businesses); err != nil {
		t.Fatalf("count: %v", err)
	}
	if businesses != 1 {
		t.Errorf("failed register must roll back the business row, got %d businesses", businesses)
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newService(t)
	cases := map[string]domainauth.RegisterInput{
		"no business":    {Email: "a@b.co", Password: "longenough"},
		"bad email":      {Email: "nope", Password: "longenough", BusinessName: "B"},
		"short password": {Email: "a@b.co", Password: "short", BusinessName: "B"},
	}
	for name, in := range cases {
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, domainauth.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

// ===== LOGIN TESTS =====

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	svc, tokens, logger, _ := newService(t)
	reg, err := svc.Register(context.Background(), alice)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res, err := svc.Login(context.Background(), domainauth.LoginInput{Email: "ALICE@acme.com", Password: alice.Password})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.UserID != reg.UserID || res.BusinessID != reg.BusinessID {
		t.Errorf("login result %+v does not match registration %+v", res, reg)
	}
	if _, err := tokens.Parse(res.Token); err != nil {
		t.Errorf("login token invalid: %v", err)
	}
	if last := logger.events[len(logger.events)-1]; last.action != "auth.login" || last.outcome != domainaudit.OutcomeSuccess {
		t.Errorf("expected auth.login success audit, got %+v", last)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, _, logger, _ := newService(t)
	if _, err := svc.Register(context.Background(), alice); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Login(context.Background(), domainauth.LoginInput{Email: "alice@acme.com", Password: "wrong-password"}); !errors.Is(err, domainauth.ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), domainauth.LoginInput{Email: "ghost@acme.com", Password: alice.Password}); !errors.Is(err, domainauth.ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}

	last := logger.events[len(logger.events)-1]
	if last.outcome != domainaudit.OutcomeError {
		t.Errorf("wrong password should be audited as error, got %+v", last)
	}
}

// --- helpers ---

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("sqlite.NewDB error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp error = %v", err)
	}
	return db
}
