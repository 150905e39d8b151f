package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelworth/ladle/internal/model"
	"github.com/avelworth/ladle/internal/plan"
	"github.com/avelworth/ladle/internal/store"
	"github.com/avelworth/ladle/internal/websocket"
)

// viewConfig drives what the page template shows alongside the day cards.
type viewConfig struct {
	Title               string
	ShowDaysUntilPayday bool
	ShowDaysEatingOut   bool
	DaysAreStale        bool
}

// TemplateHandler renders the meal-plan pages and accepts the index form.
type TemplateHandler struct {
	days          *store.DayStore
	hub           *websocket.Hub
	windowDays    int
	backwardsDays int
	templates     *template.Template
	logger        *slog.Logger
}

func NewTemplateHandler(days *store.DayStore, hub *websocket.Hub, windowDays, backwardsDays int, logger *slog.Logger) *TemplateHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/*.html"))
	return &TemplateHandler{
		days:          days,
		hub:           hub,
		windowDays:    windowDays,
		backwardsDays: backwardsDays,
		templates:     tmpl,
		logger:        logger,
	}
}

// Index shows the forward planning window, materializing any days that do
// not exist yet.
func (h *TemplateHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	days, err := h.days.MaterializeRange(today(), h.windowDays)
	if err != nil {
		h.logger.Error("materialize window", "error", err)
		http.Error(w, "failed to load meal plan", http.StatusInternalServerError)
		return
	}

	h.render(w, "index.html", map[string]any{
		"Days": asPointers(days),
		"Config": viewConfig{
			Title:               "Home",
			ShowDaysUntilPayday: true,
			ShowDaysEatingOut:   true,
		},
	})
}

// Backwards shows the last few days, oldest first, without creating rows
// for dates that were never planned.
func (h *TemplateHandler) Backwards(w http.ResponseWriter, r *http.Request) {
	days := make([]*model.Day, 0, h.backwardsDays)
	for i := h.backwardsDays; i >= 1; i-- {
		day, err := h.days.GetByDate(today().AddDate(0, 0, -i))
		if err != nil {
			h.logger.Error("load past day", "error", err)
			http.Error(w, "failed to load past meals", http.StatusInternalServerError)
			return
		}
		days = append(days, day)
	}

	h.render(w, "index.html", map[string]any{
		"Days": days,
		"Config": viewConfig{
			Title:        "Past Meals",
			DaysAreStale: true,
		},
	})
}

// SaveForm handles the index page's bracketed-index form submission and
// redirects back to the plan.
func (h *TemplateHandler) SaveForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	updates, err := plan.DecodeForm(r.PostForm)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ids, err := h.days.ApplyUpdates(updates)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("apply form updates", "error", err)
		http.Error(w, "failed to save meal plan", http.StatusInternalServerError)
		return
	}

	if h.hub != nil {
		for _, id := range ids {
			h.hub.Broadcast(websocket.NewMessage("day", "updated", id, nil))
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *TemplateHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func asPointers(days []model.Day) []*model.Day {
	out := make([]*model.Day, len(days))
	for i := range days {
		out[i] = &days[i]
	}
	return out
}
