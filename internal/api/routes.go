// Package api assembles the HTTP surface: public auth routes and the
// JWT-protected /api/v1 tree.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/agentdesk/internal/api/handlers"
	"github.com/matiasleandrokruk/agentdesk/internal/api/mcpserver"
	apmiddleware "github.com/matiasleandrokruk/agentdesk/internal/api/middleware"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/agent"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/analytics"
	domainaudit "github.com/matiasleandrokruk/agentdesk/internal/domain/audit"
	domainauth "github.com/matiasleandrokruk/agentdesk/internal/domain/auth"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/chat"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/client"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/eventbus"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/llm"
	pkgauth "github.com/matiasleandrokruk/agentdesk/pkg/auth"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB        *sql.DB
	Tokens    *pkgauth.TokenIssuer
	Completer chat.Completer

	// Optional.
	Events        eventbus.Publisher
	TokenCounter  *llm.TokenCounter
	HistoryWindow int
	CORSOrigins   []string
	Logger        *slog.Logger
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auditService := domainaudit.NewService(deps.DB)
	agentService := agent.NewService(deps.DB)
	clientService := client.NewService(deps.DB, agentService)
	chatStore := chat.NewStore(deps.DB)
	chatService := chat.NewService(chatStore, agentService, clientService, deps.Completer,
		chat.WithLogger(logger),
		chat.WithEvents(deps.Events),
		chat.WithActivityLog(auditService),
		chat.WithTokenCounter(deps.TokenCounter),
		chat.WithHistoryWindow(deps.HistoryWindow),
	)
	// read side only; the writer runs off the event bus in cmd/agentdesk
	stats := analytics.NewAggregator(deps.DB, logger)

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apmiddleware.CORS(deps.CORSOrigins))

	// ===== PUBLIC ROUTES (no auth required) =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handlers.NewAuthHandler(domainauth.NewService(deps.DB, deps.Tokens, auditService))
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login
	})

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware(deps.Tokens))
		r.Use(apmiddleware.AuditMiddleware(auditService))

		agentHandler := handlers.NewAgentHandler(agentService)
		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentHandler.CreateAgent)        // POST /api/v1/agents
			r.Get("/", agentHandler.ListAgents)          // GET /api/v1/agents
			r.Get("/{id}", agentHandler.GetAgent)        // GET /api/v1/agents/{id}
			r.Put("/{id}", agentHandler.UpdateAgent)     // PUT /api/v1/agents/{id}
			r.Delete("/{id}", agentHandler.ArchiveAgent) // DELETE /api/v1/agents/{id}
		})

		clientHandler := handlers.NewClientHandler(clientService)
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", clientHandler.CreateClient) // POST /api/v1/clients
			r.Get("/", clientHandler.ListClients)   // GET /api/v1/clients?agentId=
			r.Get("/{id}", clientHandler.GetClient) // GET /api/v1/clients/{id}
		})

		chatHandler := handlers.NewChatHandler(chatService, chatStore, agentService)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/messages", chatHandler.SendMessage) // POST /api/v1/chat/messages
			r.Get("/history", chatHandler.History)       // GET /api/v1/chat/history
		})

		analyticsHandler := handlers.NewAnalyticsHandler(stats, agentService)
		r.Get("/analytics/agents/{id}", analyticsHandler.AgentDaily) // GET /api/v1/analytics/agents/{id}?date=

		activityHandler := handlers.NewActivityHandler(auditService)
		r.Route("/activity", func(r chi.Router) {
			r.Get("/", activityHandler.ListActivity)    // GET /api/v1/activity
			r.Get("/{id}", activityHandler.GetActivity) // GET /api/v1/activity/{id}
		})

		r.Handle("/mcp", mcpserver.Handler(chatService)) // MCP streamable HTTP
	})

	return r
}
