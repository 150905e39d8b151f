package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelworth/ladle/internal/model"
	"github.com/avelworth/ladle/internal/plan"
	"github.com/avelworth/ladle/internal/store"
	"github.com/avelworth/ladle/internal/websocket"
)

// lastWeekDays and recentDays bound the takeout count and rotation lookback.
const (
	lastWeekDays = 7
	recentDays   = 3
)

// DayHandler serves the JSON API: batch day saves, week copies, and the
// derived read-only queries.
type DayHandler struct {
	days         *store.DayStore
	hub          *websocket.Hub
	windowDays   int
	paydayAnchor time.Time
	logger       *slog.Logger
}

func NewDayHandler(days *store.DayStore, hub *websocket.Hub, windowDays int, paydayAnchor time.Time, logger *slog.Logger) *DayHandler {
	return &DayHandler{
		days:         days,
		hub:          hub,
		windowDays:   windowDays,
		paydayAnchor: paydayAnchor,
		logger:       logger,
	}
}

func (h *DayHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Save accepts {"day": {...}} or {"days": [...]} and applies the batch
// atomically.
func (h *DayHandler) Save(w http.ResponseWriter, r *http.Request) {
	updates, err := plan.DecodeJSON(r.Body)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := h.days.ApplyUpdates(updates)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		h.logger.Error("apply day updates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save days")
		return
	}

	for _, id := range ids {
		h.broadcast(websocket.NewMessage("day", "updated", id, nil))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type copyWeekRequest struct {
	FromDate  string    `json:"from_date"`
	ToDate    string    `json:"to_date"`
	Overwrite plan.Flag `json:"overwrite"`
}

// CopyWeek copies one window of meal descriptions onto another, refusing
// with 409 and the conflicting dates when the target already has meals.
func (h *DayHandler) CopyWeek(w http.ResponseWriter, r *http.Request) {
	var req copyWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	from, err := time.Parse(time.DateOnly, req.FromDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_date")
		return
	}
	to, err := time.Parse(time.DateOnly, req.ToDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to_date")
		return
	}

	err = h.days.CopyWeek(from, to, h.windowDays, bool(req.Overwrite))
	if err != nil {
		var conflict *store.CopyConflictError
		if errors.As(err, &conflict) {
			dates := make([]string, len(conflict.Dates))
			for i, d := range conflict.Dates {
				dates[i] = d.Format(time.DateOnly)
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"message":   "target days already have meals; set overwrite to replace them",
				"conflicts": dates,
			})
			return
		}
		h.logger.Error("copy week", "error", err, "from", req.FromDate, "to", req.ToDate)
		writeError(w, http.StatusInternalServerError, "failed to copy week")
		return
	}

	h.broadcast(websocket.NewMessage("week", "copied", 0, map[string]any{
		"from": req.FromDate,
		"to":   req.ToDate,
	}))

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Favorites lists the distinct descriptions of favorite-flagged meals.
func (h *DayHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.days.FavoriteDescriptions(nil)
	if err != nil {
		h.logger.Error("list favorites", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	if favorites == nil {
		favorites = []string{}
	}

	out := make([]map[string]string, 0, len(favorites))
	for _, f := range favorites {
		out = append(out, map[string]string{"description": f})
	}
	writeJSON(w, http.StatusOK, out)
}

// NextPayday reports the next biweekly payday after today.
func (h *DayHandler) NextPayday(w http.ResponseWriter, r *http.Request) {
	next, daysUntil := plan.NextPayday(time.Now(), h.paydayAnchor)
	writeJSON(w, http.StatusOK, map[string]any{
		"days_until_next_payday": daysUntil,
		"next_payday_date":       next.Format(time.DateOnly),
	})
}

// TakeoutCount reports how many takeout meals the last week held.
func (h *DayHandler) TakeoutCount(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().AddDate(0, 0, -lastWeekDays)
	count, err := h.days.TakeoutCountSince(cutoff)
	if err != nil {
		h.logger.Error("count takeout meals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count takeout meals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// RotationSuggestions picks a favorite meal not served in the last few
// days. An optional meal_type query parameter narrows the pool to one slot.
func (h *DayHandler) RotationSuggestions(w http.ResponseWriter, r *http.Request) {
	var mealType *model.MealType
	if v := r.URL.Query().Get("meal_type"); v != "" {
		t := model.MealType(v)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "meal_type must be breakfast, lunch or dinner")
			return
		}
		mealType = &t
	}

	favorites, err := h.days.FavoriteDescriptions(mealType)
	if err != nil {
		h.logger.Error("list favorites", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute suggestion")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -recentDays)
	recent, err := h.days.RecentDescriptions(cutoff, mealType)
	if err != nil {
		h.logger.Error("list recent meals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute suggestion")
		return
	}

	suggestion, ok := plan.Suggest(favorites, recent)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"suggestion": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the uniform {"message": ...} error shape the API uses.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
