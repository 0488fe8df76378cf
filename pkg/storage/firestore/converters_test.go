package firestore

import (
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/fitline/server/pkg/types"
)

func TestDayMetricsToFirestore_Deterministic(t *testing.T) {
	spo2 := 95.4
	d := &types.DayMetrics{
		Date:          civil.Date{Year: 2025, Month: 3, Day: 10},
		StepsTotal:    8000,
		CaloriesTotal: 2100,
		Sleep:         &types.SleepSummary{TotalMinutes: 400, Stages: types.SleepStages{Deep: 60, REM: 90, Light: 220, Wake: 30}},
		SpO2Average:   &spo2,
	}

	first := DayMetricsToFirestore(d)
	time.Sleep(time.Millisecond)
	second := DayMetricsToFirestore(d)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Expected identical documents, got %v and %v", first, second)
	}

	back := FirestoreToDayMetrics(first)
	if back.Date != d.Date || back.StepsTotal != 8000 || back.Sleep.Stages.REM != 90 || *back.SpO2Average != spo2 {
		t.Errorf("Unexpected round trip: %+v", back)
	}
}

func TestDayMetricsToFirestore_UnavailableIsExplicit(t *testing.T) {
	m := DayMetricsToFirestore(&types.DayMetrics{Date: civil.Date{Year: 2025, Month: 3, Day: 10}})

	for _, key := range []string{"sleep", "spo2_average"} {
		v, ok := m[key]
		if !ok {
			t.Errorf("Expected %s to be present", key)
		}
		if v != nil {
			t.Errorf("Expected %s to be null, got %v", key, v)
		}
	}
	if m["sleep_line"] != types.Unavailable || m["spo2_line"] != types.Unavailable {
		t.Errorf("Expected unavailable lines, got %v / %v", m["sleep_line"], m["spo2_line"])
	}
}

func TestProfileToFirestore_OnlyPresentFields(t *testing.T) {
	age := 40
	p := &types.Profile{UserID: "demo", ProfileFields: types.ProfileFields{Age: &age}}

	m := ProfileToFirestore(p)
	if _, ok := m["weight_kg"]; ok {
		t.Error("Expected absent weight to be omitted")
	}
	if m["age"] != 40 {
		t.Errorf("Expected age 40, got %v", m["age"])
	}

	back := FirestoreToProfile(map[string]interface{}{
		"age":          int64(40),
		"past_history": []interface{}{"asthma", "diabetes"},
	})
	if *back.Age != 40 || len(back.PastHistory) != 2 {
		t.Errorf("Unexpected profile: %+v", back)
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	c := &types.Credential{Provider: types.ProviderFitbit, UserID: "demo", AccessToken: "a", RefreshToken: "r", ExpiresAt: 1741600000}
	back := FirestoreToCredential(CredentialToFirestore(c))
	if *back != *c {
		t.Errorf("Expected %+v, got %+v", c, back)
	}
}

func TestMealRoundTrip(t *testing.T) {
	kcal := 650.0
	when := time.Date(2025, 3, 9, 12, 30, 0, 0, time.UTC)
	meal := &types.Meal{
		UserID:    "demo",
		When:      when,
		WhenDate:  civil.Date{Year: 2025, Month: 3, Day: 9},
		Text:      "ramen",
		Kcal:      &kcal,
		Source:    types.MealSourceImage,
		FileName:  "lunch.jpg",
		MIME:      "image/jpeg",
		CreatedAt: when,
	}

	back := FirestoreToMeal(MealToFirestore(meal))
	if !reflect.DeepEqual(meal, back) {
		t.Fatalf("Expected %+v, got %+v", meal, back)
	}
}

func TestMealToFirestore_NoKcalIsNull(t *testing.T) {
	m := MealToFirestore(&types.Meal{Text: "salad", Source: types.MealSourceText})
	if v, ok := m["kcal"]; !ok || v != nil {
		t.Errorf("Expected explicit null kcal, got %v", v)
	}
	if _, ok := m["file_name"]; ok {
		t.Error("Expected file_name to be omitted for text meals")
	}
}
