package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/avelworth/ladle/internal/config"
	"github.com/avelworth/ladle/internal/handler"
	"github.com/avelworth/ladle/internal/middleware"
	"github.com/avelworth/ladle/internal/store"
	ws "github.com/avelworth/ladle/internal/websocket"
)

// Server wires the stores and handlers behind one router.
type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	dayH      *handler.DayHandler
	templateH *handler.TemplateHandler
	logger    *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	dayStore := store.NewDayStore(db)

	return &Server{
		db:        db,
		hub:       hub,
		dayH:      handler.NewDayHandler(dayStore, hub, cfg.WindowDays, cfg.PaydayAnchor, logger.With("component", "day")),
		templateH: handler.NewTemplateHandler(dayStore, hub, cfg.WindowDays, cfg.BackwardsDays, logger.With("component", "template")),
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.HandleFunc("GET /health", s.healthHandler)

	// JSON API
	mux.HandleFunc("POST /api/save", s.dayH.Save)
	mux.HandleFunc("POST /api/copy-week", s.dayH.CopyWeek)
	mux.HandleFunc("GET /api/favorites", s.dayH.Favorites)
	mux.HandleFunc("GET /api/next-payday", s.dayH.NextPayday)
	mux.HandleFunc("GET /api/how-many-times", s.dayH.TakeoutCount)
	mux.HandleFunc("GET /api/rotation-suggestions", s.dayH.RotationSuggestions)

	// Pages + form submission
	mux.HandleFunc("GET /", s.templateH.Index)
	mux.HandleFunc("GET /backwards", s.templateH.Backwards)
	mux.HandleFunc("POST /save", s.templateH.SaveForm)

	// WebSocket change feed
	mux.HandleFunc("GET /ws", ws.Handle(s.hub, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
