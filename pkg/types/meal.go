package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

type MealSource string

const (
	MealSourceText  MealSource = "text"
	MealSourceImage MealSource = "image"
)

// Meal is one logged meal. WhenDate is the calendar day of When in the
// configured timezone and is the key meals are grouped by.
type Meal struct {
	ID        string
	UserID    string
	When      time.Time
	WhenDate  civil.Date
	Text      string
	Kcal      *float64
	Source    MealSource
	FileName  string
	MIME      string
	CreatedAt time.Time
}

// MealInput is a meal as submitted. An empty When means now.
type MealInput struct {
	When     string     `json:"when"`
	Text     string     `json:"text"`
	Kcal     *float64   `json:"kcal"`
	Source   MealSource `json:"-"`
	FileName string     `json:"-"`
	MIME     string     `json:"-"`
}

func (in MealInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: meal text is required", ErrInvalidInput)
	}
	if in.Kcal != nil && *in.Kcal < 0 {
		return fmt.Errorf("%w: kcal must not be negative", ErrInvalidInput)
	}
	return nil
}

var mealTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseMealTime accepts RFC 3339 or a local wall-clock time in loc.
func ParseMealTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range mealTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized meal time %q", ErrInvalidInput, s)
}

// GroupMealsByDay keys meals by WhenDate, each day ordered by When.
func GroupMealsByDay(meals []Meal) map[civil.Date][]Meal {
	out := make(map[civil.Date][]Meal)
	for _, m := range meals {
		out[m.WhenDate] = append(out[m.WhenDate], m)
	}
	for _, day := range out {
		sort.SliceStable(day, func(i, j int) bool { return day[i].When.Before(day[j].When) })
	}
	return out
}

// MealResult is returned by meal writes.
type MealResult struct {
	Meal      *Meal           `json:"-"`
	Warehouse WarehouseResult `json:"warehouse"`
}
