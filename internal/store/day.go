package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/avelworth/ladle/internal/model"
	"github.com/avelworth/ladle/internal/plan"
)

// DayStore persists meal-plan days and their three meals.
type DayStore struct {
	db *sql.DB
}

func NewDayStore(db *sql.DB) *DayStore {
	return &DayStore{db: db}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so day lookups can run
// inside or outside a transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const dayCols = `id, date, is_starred, is_sammy_working, created_at, updated_at`
const mealCols = `id, meal_day_id, type, description, cooking_user, is_favorite, is_takeout, created_at, updated_at`

func scanDay(scanner interface{ Scan(...any) error }) (*model.Day, error) {
	var d model.Day
	var dateStr string
	var starred, working int

	err := scanner.Scan(&d.ID, &dateStr, &starred, &working, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.Date, err = time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse day date %q: %w", dateStr, err)
	}
	d.IsStarred = starred != 0
	d.IsSammyWorking = working != 0
	return &d, nil
}

func scanMeal(scanner interface{ Scan(...any) error }) (*model.Meal, error) {
	var m model.Meal
	var cookingUser sql.NullString
	var favorite, takeout int

	err := scanner.Scan(&m.ID, &m.DayID, &m.Type, &m.Description, &cookingUser, &favorite, &takeout, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if cookingUser.Valid {
		m.CookingUser = &cookingUser.String
	}
	m.IsFavorite = favorite != 0
	m.IsTakeout = takeout != 0
	return &m, nil
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// GetByID returns the day with its meals loaded, or nil if no row exists.
func (s *DayStore) GetByID(id int64) (*model.Day, error) {
	return getDay(s.db, `WHERE id = ?`, id)
}

// GetByDate returns the day for the given date, or nil if no row exists.
func (s *DayStore) GetByDate(date time.Time) (*model.Day, error) {
	return getDay(s.db, `WHERE date = ?`, dateKey(date))
}

func getDay(q dbtx, where string, arg any) (*model.Day, error) {
	row := q.QueryRow(`SELECT `+dayCols+` FROM meal_days `+where, arg)
	d, err := scanDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get day: %w", err)
	}

	if err := loadMeals(q, d); err != nil {
		return nil, err
	}
	return d, nil
}

func loadMeals(q dbtx, d *model.Day) error {
	rows, err := q.Query(`SELECT `+mealCols+` FROM meals WHERE meal_day_id = ? ORDER BY CASE type WHEN 'breakfast' THEN 0 WHEN 'lunch' THEN 1 ELSE 2 END`, d.ID)
	if err != nil {
		return fmt.Errorf("load meals: %w", err)
	}
	defer rows.Close()

	d.Meals = nil
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return fmt.Errorf("scan meal: %w", err)
		}
		d.Meals = append(d.Meals, *m)
	}
	return rows.Err()
}

// Materialize returns the day for the given date, creating it with three
// empty meals on first access. Creation and read are fetch-or-create: if a
// concurrent writer wins the date's unique constraint, the insert is
// retried as a read and the winner's row is returned.
func (s *DayStore) Materialize(date time.Time) (*model.Day, error) {
	day, err := s.GetByDate(date)
	if err != nil || day != nil {
		return day, err
	}
	return s.createOrReread(date)
}

// createOrReread inserts the day, falling back to a read when another
// writer won the date's unique constraint in the window after the caller's
// lookup missed. One retry; a second miss is an error.
func (s *DayStore) createOrReread(date time.Time) (*model.Day, error) {
	id, err := s.createDay(date)
	if isUniqueViolation(err) {
		day, err := s.GetByDate(date)
		if err != nil {
			return nil, err
		}
		if day == nil {
			return nil, fmt.Errorf("day for %s vanished after unique conflict", dateKey(date))
		}
		return day, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// MaterializeRange materializes n consecutive days starting at start.
func (s *DayStore) MaterializeRange(start time.Time, n int) ([]model.Day, error) {
	days := make([]model.Day, 0, n)
	for i := 0; i < n; i++ {
		day, err := s.Materialize(start.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		days = append(days, *day)
	}
	return days, nil
}

// createDay inserts a day together with its three empty meals.
func (s *DayStore) createDay(date time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := insertDay(tx, date)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create day: %w", err)
	}
	return id, nil
}

func insertDay(q dbtx, date time.Time) (int64, error) {
	result, err := q.Exec(`INSERT INTO meal_days (date) VALUES (?)`, dateKey(date))
	if err != nil {
		return 0, fmt.Errorf("insert day: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, t := range model.MealTypes {
		if _, err := q.Exec(`INSERT INTO meals (meal_day_id, type) VALUES (?, ?)`, id, string(t)); err != nil {
			return 0, fmt.Errorf("insert %s meal: %w", t, err)
		}
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ApplyUpdates applies a batch of day updates as one transaction and
// returns the ids of the updated days in payload order. Any payload that
// cannot be resolved to a day aborts the whole batch with a
// plan.ValidationError and nothing is committed.
func (s *DayStore) ApplyUpdates(updates []plan.DayUpdate) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(updates))
	for _, u := range updates {
		day, err := resolveDay(tx, u)
		if err != nil {
			return nil, err
		}
		if err := applyUpdate(tx, day, u); err != nil {
			return nil, err
		}
		ids = append(ids, day.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit updates: %w", err)
	}
	return ids, nil
}

// resolveDay finds the update's target day by id when possible, falling
// back to fetch-or-create by date. Inserts made here roll back with the
// batch if a later payload fails.
func resolveDay(tx dbtx, u plan.DayUpdate) (*model.Day, error) {
	if u.ID != nil {
		day, err := getDay(tx, `WHERE id = ?`, *u.ID)
		if err != nil {
			return nil, err
		}
		if day != nil {
			return day, nil
		}
	}

	if u.Date == nil {
		return nil, &plan.ValidationError{Field: "id"}
	}

	day, err := getDay(tx, `WHERE date = ?`, dateKey(*u.Date))
	if err != nil {
		return nil, err
	}
	if day != nil {
		return day, nil
	}

	id, err := insertDay(tx, *u.Date)
	if err != nil {
		return nil, err
	}
	return getDay(tx, `WHERE id = ?`, id)
}

func applyUpdate(tx dbtx, day *model.Day, u plan.DayUpdate) error {
	starred := day.IsStarred
	if u.IsStarred != nil {
		starred = bool(*u.IsStarred)
	}
	working := day.IsSammyWorking
	if u.IsSammyWorking != nil {
		working = bool(*u.IsSammyWorking)
	}

	_, err := tx.Exec(
		`UPDATE meal_days SET is_starred = ?, is_sammy_working = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		boolToInt(starred), boolToInt(working), day.ID,
	)
	if err != nil {
		return fmt.Errorf("update day %d: %w", day.ID, err)
	}

	byType := day.MealsByType()
	for _, t := range model.MealTypes {
		meal, ok := byType[t]
		if !ok {
			continue
		}

		// Descriptions come from the payload; an omitted meal-type key
		// resets the description to "". A payload with no description
		// keys at all leaves descriptions alone, so a flags-only save
		// cannot wipe a planned week.
		desc := meal.Description
		if len(u.Descriptions) > 0 {
			desc = u.Descriptions[t]
		}

		takeout := meal.IsTakeout
		favorite := meal.IsFavorite
		cookingUser := meal.CookingUser

		if fields, ok := u.Meals[t]; ok {
			if fields.IsTakeout != nil {
				takeout = bool(*fields.IsTakeout)
			}
			if fields.IsFavorite != nil {
				favorite = bool(*fields.IsFavorite)
			}
			if fields.CookingUser != nil {
				trimmed := strings.TrimSpace(*fields.CookingUser)
				if trimmed == "" {
					cookingUser = nil
				} else {
					cookingUser = &trimmed
				}
			}
		}

		var cu sql.NullString
		if cookingUser != nil {
			cu = sql.NullString{String: *cookingUser, Valid: true}
		}

		_, err := tx.Exec(
			`UPDATE meals SET description = ?, cooking_user = ?, is_favorite = ?, is_takeout = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			desc, cu, boolToInt(favorite), boolToInt(takeout), meal.ID,
		)
		if err != nil {
			return fmt.Errorf("update %s meal for day %d: %w", t, day.ID, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CopyConflictError reports target dates that already hold meal
// descriptions when a week copy runs without overwrite.
type CopyConflictError struct {
	Dates []time.Time
}

func (e *CopyConflictError) Error() string {
	keys := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		keys[i] = dateKey(d)
	}
	return fmt.Sprintf("target days already have meals: %s", strings.Join(keys, ", "))
}

// CopyWeek copies n consecutive days of meal descriptions from the run
// starting at from onto the run starting at to. The conflict scan covers
// every offset before any write: with overwrite false, any target day
// holding a non-empty description aborts the copy with a CopyConflictError
// listing all conflicting dates. Missing source or target days are skipped
// silently. Only descriptions are copied, never flags or the cooking user.
func (s *DayStore) CopyWeek(from, to time.Time, n int, overwrite bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var conflicts []time.Time
	for i := 0; i < n; i++ {
		targetDate := to.AddDate(0, 0, i)
		target, err := getDay(tx, `WHERE date = ?`, dateKey(targetDate))
		if err != nil {
			return err
		}
		if target != nil && hasDescriptions(target) {
			conflicts = append(conflicts, targetDate)
		}
	}
	if len(conflicts) > 0 && !overwrite {
		return &CopyConflictError{Dates: conflicts}
	}

	for i := 0; i < n; i++ {
		source, err := getDay(tx, `WHERE date = ?`, dateKey(from.AddDate(0, 0, i)))
		if err != nil {
			return err
		}
		if source == nil {
			continue
		}
		target, err := getDay(tx, `WHERE date = ?`, dateKey(to.AddDate(0, 0, i)))
		if err != nil {
			return err
		}
		if target == nil {
			continue
		}

		sourceByType := source.MealsByType()
		targetByType := target.MealsByType()
		for _, t := range model.MealTypes {
			sourceMeal, ok := sourceByType[t]
			if !ok {
				continue
			}
			if targetMeal, ok := targetByType[t]; ok {
				_, err = tx.Exec(
					`UPDATE meals SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
					sourceMeal.Description, targetMeal.ID,
				)
			} else {
				_, err = tx.Exec(
					`INSERT INTO meals (meal_day_id, type, description) VALUES (?, ?, ?)`,
					target.ID, string(t), sourceMeal.Description,
				)
			}
			if err != nil {
				return fmt.Errorf("copy %s meal to day %d: %w", t, target.ID, err)
			}
		}
	}

	return tx.Commit()
}

func hasDescriptions(day *model.Day) bool {
	for _, m := range day.Meals {
		if strings.TrimSpace(m.Description) != "" {
			return true
		}
	}
	return false
}
