package coaching

import (
	"strings"

	"cloud.google.com/go/civil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fitline/server/pkg/types"
)

var printer = message.NewPrinter(language.English)

var conditionLabels = map[types.Condition]string{
	types.ConditionHypertension: "hypertension",
	types.ConditionDiabetes:     "diabetes",
	types.ConditionCAD:          "coronary artery disease",
	types.ConditionStroke:       "stroke",
	types.ConditionDyslipidemia: "dyslipidemia",
	types.ConditionKidney:       "kidney disease",
	types.ConditionLiver:        "liver disease",
	types.ConditionAsthma:       "asthma",
	types.ConditionOther:        "other",
}

// DailyPrompt asks for a short summary of today and next-day actions.
func DailyPrompt(day types.DayMetrics) string {
	var b strings.Builder
	printer.Fprintf(&b, "Today is %s. Fitbit data so far:\n", day.Date)
	printer.Fprintf(&b, "- Steps: %d\n", day.StepsTotal)
	printer.Fprintf(&b, "- Sleep: %s\n", day.SleepLine())
	printer.Fprintf(&b, "- SpO2: %s\n", day.SpO2Line())
	printer.Fprintf(&b, "- Calories burned: %d\n\n", day.CaloriesTotal)
	b.WriteString("You are a professional health and exercise coach.\n")
	b.WriteString("In under 500 characters, summarize today's condition and suggest one to three concrete actions for tomorrow.")
	return b.String()
}

// mealsPerDay caps how many meals of a day go into the weekly prompt.
const mealsPerDay = 2

// WeeklyPrompt lists each day with up to two of its meals and the profile
// excerpt, then asks for a structured review.
func WeeklyPrompt(days []types.DayMetrics, meals map[civil.Date][]types.Meal, profile *types.Profile) string {
	var b strings.Builder
	b.WriteString("Health data for the past 7 days:\n")
	for _, d := range days {
		printer.Fprintf(&b, "%s: steps %d, sleep %s, SpO2 %s, calories %d\n",
			d.Date, d.StepsTotal, d.SleepLine(), d.SpO2Line(), d.CaloriesTotal)
		b.WriteString("  Meals:\n")
		written := 0
		for _, m := range meals[d.Date] {
			if written == mealsPerDay {
				break
			}
			text := strings.TrimSpace(m.Text)
			if text == "" {
				continue
			}
			b.WriteString("  - " + text + kcalSuffix(m.Kcal) + "\n")
			written++
		}
		if written == 0 {
			b.WriteString("  (no meals logged)\n")
		}
	}

	b.WriteString("\n[Profile excerpt]\n")
	lines := profileLines(profile)
	if len(lines) == 0 {
		b.WriteString("(no profile set)\n")
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}

	b.WriteString(`
You are a professional health and nutrition coach.
Base every observation on the profile and the 7 days above. Structure the reply as:
1. What went well, with numbers
2. Problems to address and what caused them
3. Root-cause analysis across activity, nutrition, sleep and lifestyle
4. Improvements: meals with kcal and PFC targets, exercises with sets, reps and duration, sleep habits with times
5. Tomorrow's action plan for meals, exercise and sleep`)
	return b.String()
}

// MonthlyPrompt summarizes the 30-day rollup for month (yyyy-mm) with a
// sample of logged meals.
func MonthlyPrompt(month string, s types.MonthlyStats, meals []types.Meal) string {
	var b strings.Builder
	printer.Fprintf(&b, "You are a professional health and nutrition coach. Below is the 30-day digest for %s.\n\n", month)
	b.WriteString("[Activity]\n")
	printer.Fprintf(&b, "- Days with data: %d\n", s.Days)
	printer.Fprintf(&b, "- Steps: avg %d, min %d, max %d\n", s.AvgSteps, s.MinSteps, s.MaxSteps)
	printer.Fprintf(&b, "- Calories burned: avg %d, min %d, max %d\n\n", s.AvgCalories, s.MinCalories, s.MaxCalories)
	b.WriteString("[Meals (latest entries)]\n")
	if len(meals) == 0 {
		b.WriteString("(no meals logged)\n")
	}
	for _, m := range meals {
		printer.Fprintf(&b, "- %s: %s%s\n", m.WhenDate, strings.TrimSpace(m.Text), kcalSuffix(m.Kcal))
	}
	b.WriteString(`
Please provide:
1) A 300 to 500 character summary split into strengths, improvements and warning signs
2) Up to five concrete actions for next month
3) A five-item checklist`)
	return b.String()
}

func kcalSuffix(kcal *float64) string {
	if kcal == nil {
		return ""
	}
	return printer.Sprintf(" (~%d kcal)", int(*kcal))
}

func profileLines(p *types.Profile) []string {
	if p.IsEmpty() {
		return nil
	}
	var lines []string
	add := func(label string, v any) {
		lines = append(lines, printer.Sprintf("- %s: %v", label, v))
	}
	if p.Goal != nil && *p.Goal != "" {
		add("Goal", *p.Goal)
	}
	if p.Age != nil {
		add("Age", *p.Age)
	}
	if p.Sex != nil {
		add("Sex", *p.Sex)
	}
	if p.HeightCm != nil {
		add("Height (cm)", *p.HeightCm)
	}
	if p.WeightKg != nil {
		add("Weight (kg)", *p.WeightKg)
	}
	if p.TargetWeightKg != nil {
		add("Target weight (kg)", *p.TargetWeightKg)
	}
	if p.SmokingStatus != nil {
		add("Smoking", *p.SmokingStatus)
	}
	if p.AlcoholHabit != nil {
		add("Alcohol", *p.AlcoholHabit)
	}
	if len(p.PastHistory) > 0 {
		names := make([]string, len(p.PastHistory))
		for i, c := range p.PastHistory {
			names[i] = conditionLabels[c]
			if names[i] == "" {
				names[i] = string(c)
			}
		}
		add("Medical history", strings.Join(names, ", "))
	}
	if p.Medications != nil && *p.Medications != "" {
		add("Medications", *p.Medications)
	}
	if p.Allergies != nil && *p.Allergies != "" {
		add("Allergies", *p.Allergies)
	}
	return lines
}
