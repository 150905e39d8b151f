package store

import (
	"fmt"
	"time"

	"github.com/avelworth/ladle/internal/model"
)

// TakeoutCountSince counts takeout-flagged meals on days dated on or after
// the cutoff.
func (s *DayStore) TakeoutCountSince(cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*)
		 FROM meals m
		 JOIN meal_days d ON m.meal_day_id = d.id
		 WHERE m.is_takeout = 1 AND d.date >= ?`,
		dateKey(cutoff),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count takeout meals: %w", err)
	}
	return count, nil
}

// FavoriteDescriptions returns the distinct non-empty descriptions of
// favorite-flagged meals, ordered alphabetically. A non-nil mealType
// narrows the result to that meal slot.
func (s *DayStore) FavoriteDescriptions(mealType *model.MealType) ([]string, error) {
	query := `SELECT DISTINCT description FROM meals WHERE is_favorite = 1 AND TRIM(description) != ''`
	args := []any{}
	if mealType != nil {
		query += ` AND type = ?`
		args = append(args, string(*mealType))
	}
	query += ` ORDER BY description ASC`

	return s.queryStrings(query, args, "list favorites")
}

// RecentDescriptions returns the distinct non-empty descriptions of meals
// on days dated on or after the cutoff, optionally narrowed to one meal
// slot.
func (s *DayStore) RecentDescriptions(cutoff time.Time, mealType *model.MealType) ([]string, error) {
	query := `SELECT DISTINCT m.description
	 FROM meals m
	 JOIN meal_days d ON m.meal_day_id = d.id
	 WHERE d.date >= ? AND TRIM(m.description) != ''`
	args := []any{dateKey(cutoff)}
	if mealType != nil {
		query += ` AND m.type = ?`
		args = append(args, string(*mealType))
	}

	return s.queryStrings(query, args, "list recent meals")
}

func (s *DayStore) queryStrings(query string, args []any, op string) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
