package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInput is returned by Validate. It is re-exported as ErrInvalidInput.
var ErrInvalidInput = errors.New("invalid input")

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

type SmokingStatus string

const (
	SmokingNever   SmokingStatus = "never"
	SmokingFormer  SmokingStatus = "former"
	SmokingCurrent SmokingStatus = "current"
)

type AlcoholHabit string

const (
	AlcoholNone     AlcoholHabit = "none"
	AlcoholSocial   AlcoholHabit = "social"
	AlcoholModerate AlcoholHabit = "moderate"
	AlcoholHeavy    AlcoholHabit = "heavy"
)

// Condition is an entry in a user's past medical history.
type Condition string

const (
	ConditionHypertension Condition = "hypertension"
	ConditionDiabetes     Condition = "diabetes"
	ConditionCAD          Condition = "cad"
	ConditionStroke       Condition = "stroke"
	ConditionDyslipidemia Condition = "dyslipidemia"
	ConditionKidney       Condition = "kidney"
	ConditionLiver        Condition = "liver"
	ConditionAsthma       Condition = "asthma"
	ConditionOther        Condition = "other"
)

var knownConditions = map[Condition]bool{
	ConditionHypertension: true, ConditionDiabetes: true, ConditionCAD: true,
	ConditionStroke: true, ConditionDyslipidemia: true, ConditionKidney: true,
	ConditionLiver: true, ConditionAsthma: true, ConditionOther: true,
}

// ProfileFields are the user-editable profile attributes. A nil field is
// "not present": in an update it leaves the stored value alone.
type ProfileFields struct {
	Age            *int           `json:"age,omitempty"`
	Sex            *Sex           `json:"sex,omitempty"`
	HeightCm       *float64       `json:"height_cm,omitempty"`
	WeightKg       *float64       `json:"weight_kg,omitempty"`
	TargetWeightKg *float64       `json:"target_weight_kg,omitempty"`
	Goal           *string        `json:"goal,omitempty"`
	SmokingStatus  *SmokingStatus `json:"smoking_status,omitempty"`
	AlcoholHabit   *AlcoholHabit  `json:"alcohol_habit,omitempty"`
	PastHistory    []Condition    `json:"past_history,omitempty"`
	Medications    *string        `json:"medications,omitempty"`
	Allergies      *string        `json:"allergies,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
}

// Profile is the single "current" snapshot kept per user.
type Profile struct {
	UserID string `json:"user_id"`
	ProfileFields
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty reports whether no attribute has ever been set.
func (p *Profile) IsEmpty() bool {
	if p == nil {
		return true
	}
	f := p.ProfileFields
	return f.Age == nil && f.Sex == nil && f.HeightCm == nil && f.WeightKg == nil &&
		f.TargetWeightKg == nil && f.Goal == nil && f.SmokingStatus == nil &&
		f.AlcoholHabit == nil && f.PastHistory == nil && f.Medications == nil &&
		f.Allergies == nil && f.Notes == nil
}

// Merge applies the present fields of u onto p. Absent fields are kept.
func (p *Profile) Merge(u ProfileFields) {
	if u.Age != nil {
		p.Age = u.Age
	}
	if u.Sex != nil {
		p.Sex = u.Sex
	}
	if u.HeightCm != nil {
		p.HeightCm = u.HeightCm
	}
	if u.WeightKg != nil {
		p.WeightKg = u.WeightKg
	}
	if u.TargetWeightKg != nil {
		p.TargetWeightKg = u.TargetWeightKg
	}
	if u.Goal != nil {
		p.Goal = u.Goal
	}
	if u.SmokingStatus != nil {
		p.SmokingStatus = u.SmokingStatus
	}
	if u.AlcoholHabit != nil {
		p.AlcoholHabit = u.AlcoholHabit
	}
	if u.PastHistory != nil {
		p.PastHistory = dedupeConditions(u.PastHistory)
	}
	if u.Medications != nil {
		p.Medications = u.Medications
	}
	if u.Allergies != nil {
		p.Allergies = u.Allergies
	}
	if u.Notes != nil {
		p.Notes = u.Notes
	}
}

// Validate checks enum membership and numeric ranges.
func (u ProfileFields) Validate() error {
	if u.Age != nil && (*u.Age < 0 || *u.Age > 150) {
		return fmt.Errorf("%w: age %d out of range", ErrInvalidInput, *u.Age)
	}
	if u.Sex != nil {
		switch *u.Sex {
		case SexMale, SexFemale, SexOther:
		default:
			return fmt.Errorf("%w: sex %q", ErrInvalidInput, *u.Sex)
		}
	}
	if u.SmokingStatus != nil {
		switch *u.SmokingStatus {
		case SmokingNever, SmokingFormer, SmokingCurrent:
		default:
			return fmt.Errorf("%w: smoking_status %q", ErrInvalidInput, *u.SmokingStatus)
		}
	}
	if u.AlcoholHabit != nil {
		switch *u.AlcoholHabit {
		case AlcoholNone, AlcoholSocial, AlcoholModerate, AlcoholHeavy:
		default:
			return fmt.Errorf("%w: alcohol_habit %q", ErrInvalidInput, *u.AlcoholHabit)
		}
	}
	for _, c := range u.PastHistory {
		if !knownConditions[c] {
			return fmt.Errorf("%w: past_history %q", ErrInvalidInput, c)
		}
	}
	for name, v := range map[string]*float64{"height_cm": u.HeightCm, "weight_kg": u.WeightKg, "target_weight_kg": u.TargetWeightKg} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, name)
		}
	}
	return nil
}

// FillFromNotes reads "key=value" lines from Notes and fills Sex (from
// "gender") and TargetWeightKg when the update does not carry them.
func (u *ProfileFields) FillFromNotes() {
	if u.Notes == nil {
		return
	}
	kv := map[string]string{}
	for _, line := range strings.Split(*u.Notes, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if u.Sex == nil {
		s := Sex(strings.ToLower(kv["gender"]))
		switch s {
		case SexMale, SexFemale, SexOther:
			u.Sex = &s
		}
	}
	if u.TargetWeightKg == nil {
		if raw, ok := kv["target_weight_kg"]; ok {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				u.TargetWeightKg = &f
			}
		}
	}
}

func dedupeConditions(in []Condition) []Condition {
	seen := make(map[Condition]bool, len(in))
	out := make([]Condition, 0, len(in))
	for _, c := range in {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
