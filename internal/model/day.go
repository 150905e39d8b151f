package model

import "time"

// MealType identifies one of the three meal slots every day carries.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// MealTypes lists the slots in serving order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

// Valid reports whether t is one of the three known meal types.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

// Day is one calendar date's meal plan. Every persisted Day owns exactly
// one Meal per meal type.
type Day struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	IsStarred      bool      `json:"is_starred"`
	IsSammyWorking bool      `json:"is_sammy_working"`
	Meals          []Meal    `json:"meals"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DateKey returns the date in the ISO form used as the unique day key.
func (d *Day) DateKey() string {
	return d.Date.Format(time.DateOnly)
}

// MealsByType maps each meal type to its Meal. Built once per Day and used
// by both the updater and the week copier instead of per-type branching.
func (d *Day) MealsByType() map[MealType]*Meal {
	m := make(map[MealType]*Meal, len(d.Meals))
	for i := range d.Meals {
		m[d.Meals[i].Type] = &d.Meals[i]
	}
	return m
}

// Meal is a single breakfast/lunch/dinner entry belonging to a Day.
type Meal struct {
	ID          int64     `json:"id"`
	DayID       int64     `json:"meal_day_id"`
	Type        MealType  `json:"type"`
	Description string    `json:"description"`
	CookingUser *string   `json:"cooking_user"`
	IsFavorite  bool      `json:"is_favorite"`
	IsTakeout   bool      `json:"is_takeout"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
