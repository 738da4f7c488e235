package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/events"
	"github.com/CandyToyBox/AllowanceApp/internal/handler"
	"github.com/CandyToyBox/AllowanceApp/internal/ledger"
	"github.com/CandyToyBox/AllowanceApp/internal/metrics"
	"github.com/CandyToyBox/AllowanceApp/internal/middleware"
	"github.com/CandyToyBox/AllowanceApp/internal/settlement"
	"github.com/CandyToyBox/AllowanceApp/internal/store"
	"github.com/CandyToyBox/AllowanceApp/internal/task"
	"github.com/CandyToyBox/AllowanceApp/internal/upload"
	ws "github.com/CandyToyBox/AllowanceApp/internal/websocket"
	"github.com/jmoiron/sqlx"
)

type Options struct {
	// Uploads stores proof images. A *upload.Local is also served at /uploads/.
	Uploads        upload.Storage
	MaxUploadBytes int64
	// Publishers receive every change event in addition to the WebSocket hub.
	Publishers     []events.Publisher
	Collector      settlement.Collector
	Metrics        *metrics.Metrics
	SessionTTL     time.Duration
	LoginLimit     int
	LoginWindow    time.Duration
	OriginPatterns []string
}

type Server struct {
	db           *sqlx.DB
	hub          *ws.Hub
	metrics      *metrics.Metrics
	parentH      *handler.ParentHandler
	childH       *handler.ChildHandler
	taskH        *handler.TaskHandler
	transactionH *handler.TransactionHandler
	uploadH      *handler.UploadHandler
	collectH     *handler.CollectHandler
	authH        *handler.AuthHandler
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	loginPolicy  middleware.Policy
	uploads      upload.Storage
	opts         Options
	logger       *slog.Logger
}

func New(db *sqlx.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	pub := events.Multi(append([]events.Publisher{hub}, opts.Publishers...))

	if opts.Collector == nil {
		opts.Collector = settlement.NewSimulated(logger.With("component", "settlement"))
	}

	stores := store.New(db)
	limiter := middleware.NewRateLimiter()
	loginPolicy := middleware.Policy{Limit: opts.LoginLimit, Window: opts.LoginWindow}.OrDefault(middleware.DefaultLoginPolicy)
	uploader := upload.NewUploader(opts.Uploads, opts.MaxUploadBytes)

	tasks := task.NewManager(task.Deps{
		Tasks:    stores.Tasks,
		Parents:  stores.Parents,
		Children: stores.Children,
		Proofs:   uploader,
		Events:   pub,
		Metrics:  opts.Metrics,
		Logger:   logger.With("component", "task"),
	})
	ldg := ledger.New(stores.Transactions, stores.Children, pub, opts.Metrics, logger.With("component", "ledger"))

	return &Server{
		db:           db,
		hub:          hub,
		metrics:      opts.Metrics,
		parentH:      handler.NewParentHandler(stores.Parents, stores.Children, tasks, pub, logger.With("component", "parent")),
		childH:       handler.NewChildHandler(stores.Children, stores.Parents, tasks, ldg, pub, logger.With("component", "child")),
		taskH:        handler.NewTaskHandler(tasks, logger.With("component", "task")),
		transactionH: handler.NewTransactionHandler(ldg, logger.With("component", "transaction")),
		uploadH:      handler.NewUploadHandler(uploader, logger.With("component", "upload")),
		collectH:     handler.NewCollectHandler(opts.Collector, opts.Metrics, logger.With("component", "collect")),
		authH:        handler.NewAuthHandler(stores.Parents, stores.Children, stores.Sessions, middleware.NewAccountLimiter(limiter, loginPolicy), opts.SessionTTL, logger.With("component", "auth")),
		sessionStore: stores.Sessions,
		rateLimiter:  limiter,
		loginPolicy:  loginPolicy,
		uploads:      opts.Uploads,
		opts:         opts,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Cleanup drops expired sessions and reset rate-limit windows. The limiter
// is pruned even when the session sweep fails.
func (s *Server) Cleanup(ctx context.Context) (sessions int64, limits int, err error) {
	limits = s.rateLimiter.Cleanup()
	sessions, err = s.sessionStore.DeleteExpired(ctx)
	return sessions, limits, err
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.opts.OriginPatterns))
	if local, ok := s.uploads.(*upload.Local); ok {
		mux.Handle("GET "+upload.LocalURLPrefix, local.Handler())
	}

	// Session auth
	requireAuth := middleware.RequireAuth(s.sessionStore, s.logger.With("component", "auth"))
	mux.Handle("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	mux.Handle("POST /api/logout", requireAuth(http.HandlerFunc(s.authH.Logout)))
	mux.Handle("GET /api/me", requireAuth(http.HandlerFunc(s.authH.Me)))

	// Parents
	mux.HandleFunc("POST /api/parents", s.parentH.Create)
	mux.HandleFunc("GET /api/parents/{id}", s.parentH.Get)
	mux.HandleFunc("PATCH /api/parents/{id}/wallet", s.parentH.UpdateWallet)
	mux.HandleFunc("GET /api/parents/{id}/children", s.parentH.ListChildren)
	mux.HandleFunc("GET /api/parents/{id}/tasks", s.parentH.ListTasks)

	// Wallet lookups
	mux.HandleFunc("GET /api/wallets/{address}/parent", s.parentH.GetByWallet)
	mux.HandleFunc("GET /api/wallets/{address}/child", s.childH.GetByWallet)

	// Children
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.HandleFunc("GET /api/children/{id}", s.childH.Get)
	mux.HandleFunc("PATCH /api/children/{id}/wallet", s.childH.UpdateWallet)
	mux.HandleFunc("GET /api/children/{id}/tasks", s.childH.ListTasks)
	mux.HandleFunc("GET /api/children/{id}/transactions", s.childH.ListTransactions)
	mux.HandleFunc("GET /api/children/{id}/balance", s.childH.Balance)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}/proof", s.taskH.SubmitProof)
	mux.HandleFunc("PATCH /api/tasks/{id}/approve", s.taskH.Approve)
	mux.HandleFunc("PATCH /api/tasks/{id}/reject", s.taskH.Reject)

	// Ledger
	mux.HandleFunc("POST /api/transactions", s.transactionH.Create)

	// Uploads and settlement
	mux.HandleFunc("POST /api/upload", s.uploadH.Upload)
	mux.HandleFunc("POST /api/collect", s.collectH.Collect)

	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metrics.InstrumentHandler(h)
	}
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimitedHandler budgets requests per client IP. Login additionally
// budgets per account inside the handler.
func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return "ip:" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, s.loginPolicy)(h)
}
