package types

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMealTime(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-09T12:30:00+09:00", time.Date(2025, 3, 9, 12, 30, 0, 0, jst)},
		{"2025-03-09T12:30:00", time.Date(2025, 3, 9, 12, 30, 0, 0, jst)},
		{"2025-03-09T12:30", time.Date(2025, 3, 9, 12, 30, 0, 0, jst)},
		{"2025-03-09 12:30", time.Date(2025, 3, 9, 12, 30, 0, 0, jst)},
		{" 2025-03-09 ", time.Date(2025, 3, 9, 0, 0, 0, 0, jst)},
	}
	for _, tt := range tests {
		got, err := ParseMealTime(tt.in, jst)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%q: got %v", tt.in, got)
	}

	_, err := ParseMealTime("yesterday", jst)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestMealInputValidate(t *testing.T) {
	neg := -1.0
	assert.NoError(t, MealInput{Text: "ramen"}.Validate())
	assert.ErrorIs(t, MealInput{Text: "  "}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, MealInput{Text: "ramen", Kcal: &neg}.Validate(), ErrInvalidInput)
}

func TestGroupMealsByDay(t *testing.T) {
	d1 := civil.Date{Year: 2025, Month: 3, Day: 8}
	d2 := civil.Date{Year: 2025, Month: 3, Day: 9}
	base := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)

	got := GroupMealsByDay([]Meal{
		{Text: "dinner", WhenDate: d2, When: base.Add(10 * time.Hour)},
		{Text: "curry", WhenDate: d1, When: base.Add(-12 * time.Hour)},
		{Text: "breakfast", WhenDate: d2, When: base},
	})

	require.Len(t, got, 2)
	require.Len(t, got[d2], 2)
	assert.Equal(t, "breakfast", got[d2][0].Text)
	assert.Equal(t, "dinner", got[d2][1].Text)
	assert.Equal(t, "curry", got[d1][0].Text)
}
