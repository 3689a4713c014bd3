package client_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/client"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
)

type fixture struct {
	db      *sql.DB
	agents  *agent.Service
	clients *client.Service
	agentID string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("sqlite.NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	now := sqlite.FormatTime(time.Now())
	for _, id := range []string{"biz-1", "biz-2"} {
		if _, err := db.Exec(`INSERT INTO business (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`, id, id, now, now); err != nil {
			t.Fatalf("insert business: %v", err)
		}
	}

	agents := agent.NewService(db)
	a, err := agents.Create(context.Background(), agent.CreateInput{BusinessID: "biz-1", Name: "Support"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return fixture{db: db, agents: agents, clients: client.NewService(db, agents), agentID: a.ID}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, client.CreateInput{
		BusinessID: "biz-1",
		AgentID:    f.agentID,
		Name:       " Jane Roe ",
		Email:      "jane@example.com",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Name != "Jane Roe" || c.AgentID != f.agentID || c.LastInteractionAt != nil {
		t.Errorf("unexpected client %+v", c)
	}

	if _, err := f.clients.Get(ctx, "biz-2", c.ID); !errors.Is(err, client.ErrClientNotFound) {
		t.Errorf("cross-tenant Get must be not found, got %v", err)
	}
}

func TestCreate_RequiresOwnedAgent(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	_, err := f.clients.Create(ctx, client.CreateInput{BusinessID: "biz-2", AgentID: f.agentID, Name: "x"})
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound for foreign agent, got %v", err)
	}
	_, err = f.clients.Create(ctx, client.CreateInput{BusinessID: "biz-1", AgentID: "missing", Name: "x"})
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound for unknown agent, got %v", err)
	}
}

func TestTouchLastInteraction(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, client.CreateInput{BusinessID: "biz-1", AgentID: f.agentID, Name: "Jane"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)
	if err := f.clients.TouchLastInteraction(ctx, c.ID, at); err != nil {
		t.Fatalf("TouchLastInteraction: %v", err)
	}
	got, err := f.clients.Get(ctx, "biz-1", c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastInteractionAt == nil || !got.LastInteractionAt.Equal(at) {
		t.Errorf("last_interaction_at = %v; want %v", got.LastInteractionAt, at)
	}

	if err := f.clients.TouchLastInteraction(ctx, "missing", at); err != nil {
		t.Errorf("touching an unknown client must not fail, got %v", err)
	}
}

func TestGetClient_Unscoped(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, client.CreateInput{BusinessID: "biz-1", AgentID: f.agentID, Name: "Jane"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := f.clients.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.BusinessID != "biz-1" || got.AgentID != f.agentID {
		t.Errorf("unexpected owner %+v", got)
	}
	if _, err := f.clients.GetClient(ctx, "missing"); !errors.Is(err, client.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestListByAgent_MostRecentFirst(t *testing.T) {
	t.Parallel()

	f := setup(t)
	ctx := context.Background()

	ids := map[string]string{}
	for _, name := range []string{"never", "older", "newer"} {
		c, err := f.clients.Create(ctx, client.CreateInput{BusinessID: "biz-1", AgentID: f.agentID, Name: name})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids[name] = c.ID
	}
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := f.clients.TouchLastInteraction(ctx, ids["older"], base); err != nil {
		t.Fatal(err)
	}
	if err := f.clients.TouchLastInteraction(ctx, ids["newer"], base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	list, err := f.clients.ListByAgent(ctx, "biz-1", f.agentID, 10, 0)
	if err != nil {
		t.Fatalf("ListByAgent: %v", err)
	}
	var names []string
	for _, c := range list {
		names = append(names, c.Name)
	}
	if len(names) != 3 || names[0] != "newer" || names[1] != "older" || names[2] != "never" {
		t.Errorf("expected [newer older never], got %v", names)
	}

	other, err := f.clients.ListByAgent(ctx, "biz-2", f.agentID, 10, 0)
	if err != nil {
		t.Fatalf("ListByAgent: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other business must see no clients, got %d", len(other))
	}
}
