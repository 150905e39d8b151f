package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avelworth/ladle/internal/database"
	"github.com/avelworth/ladle/internal/model"
	"github.com/avelworth/ladle/internal/plan"
	"github.com/avelworth/ladle/internal/store"
)

func setupDayHandler(t *testing.T) (*DayHandler, *store.DayStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	days := store.NewDayStore(db)
	anchor, _ := time.Parse(time.DateOnly, "2025-09-18")
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewDayHandler(days, nil, 7, anchor, logger), days
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func postJSON(t *testing.T, fn http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSaveSingleDay(t *testing.T) {
	h, days := setupDayHandler(t)

	rec := postJSON(t, h.Save, `{"day": {"date": "2025-09-18", "breakfast": "eggs", "is_starred": "on"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v, want ok", got)
	}

	date, _ := time.Parse(time.DateOnly, "2025-09-18")
	day, err := days.GetByDate(date)
	if err != nil || day == nil {
		t.Fatalf("day not saved: %v", err)
	}
	if !day.IsStarred {
		t.Error("expected is_starred true")
	}
	if got := day.MealsByType()[model.MealBreakfast].Description; got != "eggs" {
		t.Errorf("breakfast = %q, want eggs", got)
	}
}

func TestSaveFlagsOnlyKeepsMeals(t *testing.T) {
	h, days := setupDayHandler(t)

	date, _ := time.Parse(time.DateOnly, "2025-09-18")
	day, _ := days.Materialize(date)
	if _, err := days.ApplyUpdates([]plan.DayUpdate{{
		ID: &day.ID,
		Descriptions: map[model.MealType]string{
			model.MealBreakfast: "eggs",
			model.MealLunch:     "soup",
			model.MealDinner:    "tacos",
		},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Starring a day from the page sends only the flag.
	rec := postJSON(t, h.Save, fmt.Sprintf(`{"day": {"id": %d, "is_starred": true}}`, day.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got, _ := days.GetByID(day.ID)
	if !got.IsStarred {
		t.Error("expected is_starred true")
	}
	byType := got.MealsByType()
	for mt, want := range map[model.MealType]string{
		model.MealBreakfast: "eggs",
		model.MealLunch:     "soup",
		model.MealDinner:    "tacos",
	} {
		if got := byType[mt].Description; got != want {
			t.Errorf("%s = %q, want %q after starring the day", mt, got, want)
		}
	}
}

func TestSaveInvalidJSON(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := postJSON(t, h.Save, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if _, ok := decodeBody(t, rec)["message"]; !ok {
		t.Error("expected message field in error body")
	}
}

func TestSaveMissingEnvelope(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := postJSON(t, h.Save, `{"date": "2025-09-18"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSaveUnresolvableDay(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := postJSON(t, h.Save, `{"day": {"breakfast": "eggs"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if _, ok := decodeBody(t, rec)["message"]; !ok {
		t.Error("expected message field in error body")
	}
}

func TestSaveUnknownIDWithoutDate(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := postJSON(t, h.Save, `{"day": {"id": 999}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestCopyWeekEndpoint(t *testing.T) {
	h, days := setupDayHandler(t)

	from, _ := time.Parse(time.DateOnly, "2025-09-01")
	to, _ := time.Parse(time.DateOnly, "2025-09-08")
	source, _ := days.Materialize(from)
	if _, err := days.ApplyUpdates([]plan.DayUpdate{{
		ID:           &source.ID,
		Descriptions: map[model.MealType]string{model.MealDinner: "Curry"},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := days.Materialize(to); err != nil {
		t.Fatalf("materialize target: %v", err)
	}

	rec := postJSON(t, h.CopyWeek, `{"from_date": "2025-09-01", "to_date": "2025-09-08"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	target, _ := days.GetByDate(to)
	if got := target.MealsByType()[model.MealDinner].Description; got != "Curry" {
		t.Errorf("target dinner = %q, want Curry", got)
	}
}

func TestCopyWeekConflictResponse(t *testing.T) {
	h, days := setupDayHandler(t)

	to, _ := time.Parse(time.DateOnly, "2025-09-08")
	target, _ := days.Materialize(to)
	if _, err := days.ApplyUpdates([]plan.DayUpdate{{
		ID:           &target.ID,
		Descriptions: map[model.MealType]string{model.MealLunch: "Soup"},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := postJSON(t, h.CopyWeek, `{"from_date": "2025-09-01", "to_date": "2025-09-08"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["message"]; !ok {
		t.Error("expected message field")
	}
	conflicts, ok := body["conflicts"].([]any)
	if !ok || len(conflicts) != 1 || conflicts[0] != "2025-09-08" {
		t.Errorf("conflicts = %v, want [2025-09-08]", body["conflicts"])
	}

	// Overwrite clears the objection. The string form exercises the same
	// coercion checkbox submissions use.
	rec = postJSON(t, h.CopyWeek, `{"from_date": "2025-09-01", "to_date": "2025-09-08", "overwrite": "on"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("overwrite status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCopyWeekBadDates(t *testing.T) {
	h, _ := setupDayHandler(t)

	for _, body := range []string{
		`{"from_date": "yesterday", "to_date": "2025-09-08"}`,
		`{"from_date": "2025-09-01", "to_date": "09/08/2025"}`,
		`{"from_date": "2025-09-01"}`,
	} {
		rec := postJSON(t, h.CopyWeek, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestFavoritesEndpoint(t *testing.T) {
	h, days := setupDayHandler(t)

	date, _ := time.Parse(time.DateOnly, "2025-09-10")
	day, _ := days.Materialize(date)
	if _, err := days.ApplyUpdates([]plan.DayUpdate{{
		ID:           &day.ID,
		Descriptions: map[model.MealType]string{model.MealDinner: "Tacos"},
		Meals: map[model.MealType]plan.MealFields{
			model.MealDinner: {IsFavorite: flagPtr(true)},
		},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
	rec := httptest.NewRecorder()
	h.Favorites(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var out []map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0]["description"] != "Tacos" {
		t.Errorf("favorites = %v, want [{description: Tacos}]", out)
	}
}

func TestFavoritesEmptyList(t *testing.T) {
	h, _ := setupDayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
	rec := httptest.NewRecorder()
	h.Favorites(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestNextPaydayEndpoint(t *testing.T) {
	h, _ := setupDayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/next-payday", nil)
	rec := httptest.NewRecorder()
	h.NextPayday(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := decodeBody(t, rec)
	anchor, _ := time.Parse(time.DateOnly, "2025-09-18")
	wantNext, wantDays := plan.NextPayday(time.Now(), anchor)
	if got := body["next_payday_date"]; got != wantNext.Format(time.DateOnly) {
		t.Errorf("next_payday_date = %v, want %s", got, wantNext.Format(time.DateOnly))
	}
	if got := int(body["days_until_next_payday"].(float64)); got != wantDays {
		t.Errorf("days_until_next_payday = %d, want %d", got, wantDays)
	}
}

func TestTakeoutCountEndpoint(t *testing.T) {
	h, days := setupDayHandler(t)

	yesterday := time.Now().AddDate(0, 0, -1)
	day, _ := days.Materialize(yesterday)
	if _, err := days.ApplyUpdates([]plan.DayUpdate{{
		ID: &day.ID,
		Meals: map[model.MealType]plan.MealFields{
			model.MealLunch:  {IsTakeout: flagPtr(true)},
			model.MealDinner: {IsTakeout: flagPtr(true)},
		},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Ten days back is outside the window.
	old, _ := days.Materialize(time.Now().AddDate(0, 0, -10))
	if _, err := days.ApplyUpdates([]plan.DayUpdate{{
		ID: &old.ID,
		Meals: map[model.MealType]plan.MealFields{
			model.MealDinner: {IsTakeout: flagPtr(true)},
		},
	}}); err != nil {
		t.Fatalf("seed old: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/how-many-times", nil)
	rec := httptest.NewRecorder()
	h.TakeoutCount(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := int(decodeBody(t, rec)["count"].(float64)); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestRotationSuggestionsEndpoint(t *testing.T) {
	h, days := setupDayHandler(t)

	// A favorite from last month and a favorite served yesterday. Only the
	// old one is eligible.
	oldDate, _ := time.Parse(time.DateOnly, "2025-08-01")
	oldDay, _ := days.Materialize(oldDate)
	recent, _ := days.Materialize(time.Now().AddDate(0, 0, -1))
	if _, err := days.ApplyUpdates([]plan.DayUpdate{
		{
			ID:           &oldDay.ID,
			Descriptions: map[model.MealType]string{model.MealDinner: "Lasagna"},
			Meals: map[model.MealType]plan.MealFields{
				model.MealDinner: {IsFavorite: flagPtr(true)},
			},
		},
		{
			ID:           &recent.ID,
			Descriptions: map[model.MealType]string{model.MealDinner: "Tacos"},
			Meals: map[model.MealType]plan.MealFields{
				model.MealDinner: {IsFavorite: flagPtr(true)},
			},
		},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rotation-suggestions", nil)
	rec := httptest.NewRecorder()
	h.RotationSuggestions(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["suggestion"]; got != "Lasagna" {
		t.Errorf("suggestion = %v, want Lasagna", got)
	}
}

func TestRotationSuggestionsEmpty(t *testing.T) {
	h, _ := setupDayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rotation-suggestions", nil)
	rec := httptest.NewRecorder()
	h.RotationSuggestions(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, ok := decodeBody(t, rec)["suggestion"]; !ok || got != nil {
		t.Errorf("suggestion = %v, want explicit null", got)
	}
}

func TestRotationSuggestionsInvalidMealType(t *testing.T) {
	h, _ := setupDayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rotation-suggestions?meal_type=brunch", nil)
	rec := httptest.NewRecorder()
	h.RotationSuggestions(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func flagPtr(b bool) *plan.Flag {
	f := plan.Flag(b)
	return &f
}
