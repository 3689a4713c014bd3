package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
)

func mustMigrate(t *testing.T) *sql.DB {
	t.Helper()
	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db
}

// TestMigrate_RunsAllMigrations verifies that MigrateUp records every file.
func TestMigrate_RunsAllMigrations(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("SELECT COUNT(*) FROM schema_migrations error = %v", err)
	}
	if count != 2 {
		t.Errorf("schema_migrations rows = %d; want 2", count)
	}
}

// TestMigrate_Idempotent verifies that a second run is a no-op.
func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	var before int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&before); err != nil {
		t.Fatalf("count before: %v", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second run error = %v; want nil", err)
	}
	var after int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after); err != nil {
		t.Fatalf("count after: %v", err)
	}
	if after != before {
		t.Errorf("schema_migrations count changed from %d to %d; want unchanged", before, after)
	}
}

func TestMigrate_TablesCreated(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	for _, table := range []string{
		"business", "user_account", "agent", "client",
		"chat_message", "activity_log", "analytics_daily",
	} {
		assertTableExists(t, db, table)
	}
}

// TestMigrate_AgentRequiresBusiness verifies FK enforcement on agent.business_id.
func TestMigrate_AgentRequiresBusiness(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	_, err := db.Exec(`
		INSERT INTO agent (id, business_id, name, created_at, updated_at)
		VALUES ('a-1', 'missing-business', 'Support', '2026-01-01', '2026-01-01')
	`)
	if err == nil {
		t.Error("INSERT agent with unknown business_id succeeded; want FK constraint error")
	}
}

// TestMigrate_ChatMessageHasNoForeignKeys verifies a message can reference
// agents and clients that do not exist.
func TestMigrate_ChatMessageHasNoForeignKeys(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	_, err := db.Exec(`
		INSERT INTO chat_message (id, agent_id, client_id, role, content, created_at)
		VALUES ('m-1', 'ghost-agent', 'ghost-client', 'user', 'hello', '2026-01-01')
	`)
	if err != nil {
		t.Fatalf("INSERT chat_message for unknown agent error = %v; want nil", err)
	}
}

func TestMigrate_ChatMessageRoleChecked(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	_, err := db.Exec(`
		INSERT INTO chat_message (id, agent_id, client_id, role, content, created_at)
		VALUES ('m-1', 'a', 'c', 'tool', 'x', '2026-01-01')
	`)
	if err == nil {
		t.Error("INSERT chat_message with role 'tool' succeeded; want CHECK constraint error")
	}
}

func TestMigrate_UserEmailUnique(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	if _, err := db.Exec(`INSERT INTO business (id, name, created_at, updated_at) VALUES ('b-1', 'Acme', 'x', 'x')`); err != nil {
		t.Fatalf("business insert error = %v", err)
	}
	insert := `INSERT INTO user_account (id, business_id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, 'b-1', 'alice@example.com', 'Alice', 'hash', 'x', 'x')`
	if _, err := db.Exec(insert, "u-1"); err != nil {
		t.Fatalf("first user insert error = %v", err)
	}
	if _, err := db.Exec(insert, "u-2"); err == nil {
		t.Error("duplicate email INSERT succeeded; want UNIQUE constraint error")
	}
}

// TestMigrate_ActivityLogAppendOnly verifies UPDATE and DELETE are rejected.
func TestMigrate_ActivityLogAppendOnly(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	if _, err := db.Exec(`
		INSERT INTO activity_log (id, business_id, actor_type, action, outcome, created_at)
		VALUES ('l-1', 'b-1', 'user', 'chat.send_message', 'success', 'x')
	`); err != nil {
		t.Fatalf("activity insert error = %v", err)
	}
	if _, err := db.Exec(`UPDATE activity_log SET outcome = 'error' WHERE id = 'l-1'`); err == nil {
		t.Error("UPDATE activity_log succeeded; want append-only error")
	}
	if _, err := db.Exec(`DELETE FROM activity_log WHERE id = 'l-1'`); err == nil {
		t.Error("DELETE activity_log succeeded; want append-only error")
	}
}

func TestMigrate_Version(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v; want nil", err)
	}
	if version != 2 {
		t.Errorf("MigrationVersion() = %d; want 2", version)
	}
}

func TestMigrationVersion_NoMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("MigrationVersion() = %d; want 0 on fresh DB", version)
	}
}

// assertTableExists fails the test if the given table doesn't exist in the DB.
func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)

	if err == sql.ErrNoRows {
		t.Errorf("table %q not found in sqlite_master after MigrateUp", tableName)
		return
	}
	if err != nil {
		t.Fatalf("assertTableExists(%q) query error = %v", tableName, err)
	}
}
