package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/avelworth/ladle/internal/model"
)

// ValidationError reports a day-update payload that cannot be resolved to a
// day because a required field is missing.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("each day must have an %q or a date", e.Field)
}

// MealFields carries the nested per-meal tags of an update payload. Nil
// pointers mean the field was absent and the stored value is left alone.
type MealFields struct {
	IsTakeout   *Flag   `json:"is_takeout"`
	CookingUser *string `json:"cooking_user"`
	IsFavorite  *Flag   `json:"is_favorite"`
}

// DayUpdate is one day's partial update, normalized from either a JSON body
// or a bracketed-index form submission.
//
// Flags follow present-overwrites/absent-unchanged semantics. Descriptions
// do not: when any description key is present, applying an update writes
// Descriptions[type] for every meal type, so an omitted key resets that
// description to "". A payload with no description keys at all leaves
// descriptions untouched. The form decoder fills in every field explicitly
// (a submitted day card carries its full state, and unchecked checkboxes
// are simply absent from the body).
type DayUpdate struct {
	ID             *int64
	Date           *time.Time
	IsStarred      *Flag
	IsSammyWorking *Flag
	Descriptions   map[model.MealType]string
	Meals          map[model.MealType]MealFields
}

// Resolvable reports whether the update identifies a day at all.
func (u *DayUpdate) Resolvable() bool {
	return u.ID != nil || u.Date != nil
}

type dayPayload struct {
	ID             *int64                `json:"id"`
	Date           *string               `json:"date"`
	IsStarred      *Flag                 `json:"is_starred"`
	IsSammyWorking *Flag                 `json:"is_sammy_working"`
	Breakfast      *string               `json:"breakfast"`
	Lunch          *string               `json:"lunch"`
	Dinner         *string               `json:"dinner"`
	Meals          map[string]MealFields `json:"meals"`
}

type saveEnvelope struct {
	Day  *dayPayload  `json:"day"`
	Days []dayPayload `json:"days"`
}

// DecodeJSON parses a save request body, which is either {"day": {...}} or
// {"days": [...]}. Each entry must carry an id or a date; a payload with
// neither yields a ValidationError.
func DecodeJSON(r io.Reader) ([]DayUpdate, error) {
	var env saveEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode save payload: %w", err)
	}

	var payloads []dayPayload
	switch {
	case env.Day != nil:
		payloads = []dayPayload{*env.Day}
	case env.Days != nil:
		payloads = env.Days
	default:
		return nil, fmt.Errorf("missing 'day' or 'days' field")
	}

	updates := make([]DayUpdate, 0, len(payloads))
	for _, p := range payloads {
		u, err := p.toUpdate()
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func (p dayPayload) toUpdate() (DayUpdate, error) {
	u := DayUpdate{
		ID:             p.ID,
		IsStarred:      p.IsStarred,
		IsSammyWorking: p.IsSammyWorking,
		Descriptions:   map[model.MealType]string{},
		Meals:          map[model.MealType]MealFields{},
	}

	if p.Date != nil {
		d, err := time.Parse(time.DateOnly, *p.Date)
		if err != nil {
			return DayUpdate{}, fmt.Errorf("invalid date %q", *p.Date)
		}
		u.Date = &d
	}

	if !u.Resolvable() {
		return DayUpdate{}, &ValidationError{Field: "id"}
	}

	if p.Breakfast != nil {
		u.Descriptions[model.MealBreakfast] = *p.Breakfast
	}
	if p.Lunch != nil {
		u.Descriptions[model.MealLunch] = *p.Lunch
	}
	if p.Dinner != nil {
		u.Descriptions[model.MealDinner] = *p.Dinner
	}

	for name, fields := range p.Meals {
		t := model.MealType(name)
		if !t.Valid() {
			return DayUpdate{}, fmt.Errorf("unknown meal type %q", name)
		}
		u.Meals[t] = fields
	}

	return u, nil
}

// Form keys look like days[0][breakfast] or days[0][meals][dinner][is_takeout].
var formKeyRegexp = regexp.MustCompile(`^days\[(\d+)\]\[([a-z_]+)\](?:\[([a-z]+)\]\[([a-z_]+)\])?$`)

// DecodeForm parses a bracketed-index form body into day updates, ordered
// by their form index. Checkbox semantics apply: each submitted day card
// represents its complete state, so flags absent from the body decode to
// explicit false and meal descriptions default to "".
func DecodeForm(values url.Values) ([]DayUpdate, error) {
	byIndex := map[int]*DayUpdate{}

	for key, vals := range values {
		m := formKeyRegexp.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		if len(vals) == 0 {
			continue
		}
		val := vals[0]

		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid day index in %q", key)
		}

		u := byIndex[idx]
		if u == nil {
			u = newFormUpdate()
			byIndex[idx] = u
		}

		if m[3] != "" {
			if err := u.setMealField(model.MealType(m[3]), m[4], val); err != nil {
				return nil, err
			}
			continue
		}
		if err := u.setDayField(m[2], val); err != nil {
			return nil, err
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	updates := make([]DayUpdate, 0, len(indexes))
	for _, i := range indexes {
		u := byIndex[i]
		if !u.Resolvable() {
			return nil, &ValidationError{Field: "id"}
		}
		updates = append(updates, *u)
	}
	return updates, nil
}

// newFormUpdate starts a form-shaped update with every flag explicitly
// false, since unchecked checkboxes never appear in the body.
func newFormUpdate() *DayUpdate {
	off := Flag(false)
	u := &DayUpdate{
		IsStarred:      &off,
		IsSammyWorking: &off,
		Descriptions:   map[model.MealType]string{},
		Meals:          map[model.MealType]MealFields{},
	}
	for _, t := range model.MealTypes {
		f := Flag(false)
		g := Flag(false)
		u.Meals[t] = MealFields{IsTakeout: &f, IsFavorite: &g}
	}
	return u
}

func (u *DayUpdate) setDayField(field, val string) error {
	switch field {
	case "id":
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid day id %q", val)
		}
		u.ID = &id
	case "date":
		d, err := time.Parse(time.DateOnly, val)
		if err != nil {
			return fmt.Errorf("invalid date %q", val)
		}
		u.Date = &d
	case "is_starred":
		f := Flag(Truthy(val))
		u.IsStarred = &f
	case "is_sammy_working":
		f := Flag(Truthy(val))
		u.IsSammyWorking = &f
	case "breakfast", "lunch", "dinner":
		u.Descriptions[model.MealType(field)] = val
	default:
		// Unknown fields are ignored so template additions don't break saves.
	}
	return nil
}

func (u *DayUpdate) setMealField(t model.MealType, field, val string) error {
	if !t.Valid() {
		return fmt.Errorf("unknown meal type %q", string(t))
	}
	fields := u.Meals[t]
	switch field {
	case "is_takeout":
		f := Flag(Truthy(val))
		fields.IsTakeout = &f
	case "is_favorite":
		f := Flag(Truthy(val))
		fields.IsFavorite = &f
	case "cooking_user":
		v := val
		fields.CookingUser = &v
	}
	u.Meals[t] = fields
	return nil
}
