package fitbit

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is a numeric field as sent upstream. Fitbit mixes strings, integers
// and floats for the same field; all are kept as text. Other JSON shapes
// decode as blank.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*v = ""
		return nil
	}
	*v = Value(n.String())
	return nil
}

// SeriesPoint is one day of an activity time series.
type SeriesPoint struct {
	DateTime string `json:"dateTime"`
	Value    Value  `json:"value"`
}

type SeriesResponse struct {
	Points []SeriesPoint
	Raw    []byte
}

type stepsPayload struct {
	Points []SeriesPoint `json:"activities-steps"`
}

type caloriesPayload struct {
	Points []SeriesPoint `json:"activities-calories"`
}

type StageSummary struct {
	Minutes Value `json:"minutes"`
}

type SleepLevels struct {
	Summary map[string]StageSummary `json:"summary"`
}

// SleepLog is one sleep session.
type SleepLog struct {
	LogID         int64       `json:"logId"`
	DateOfSleep   string      `json:"dateOfSleep"`
	StartTime     string      `json:"startTime"`
	EndTime       string      `json:"endTime"`
	MinutesAsleep Value       `json:"minutesAsleep"`
	MinutesAwake  Value       `json:"minutesAwake"`
	IsMainSleep   bool        `json:"isMainSleep"`
	Type          string      `json:"type"`
	Levels        SleepLevels `json:"levels"`
}

// StageMinutes returns the summary minutes for a stage name, blank if absent.
func (l SleepLog) StageMinutes(stage string) Value {
	return l.Levels.Summary[stage].Minutes
}

type SleepResponse struct {
	Sleep []SleepLog `json:"sleep"`
	Raw   []byte     `json:"-"`
}

type SpO2Value struct {
	Avg *float64 `json:"avg"`
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type SpO2Response struct {
	DateTime string     `json:"dateTime"`
	Value    *SpO2Value `json:"value"`
	SpO2     *SpO2Value `json:"spo2"`
	Raw      []byte     `json:"-"`
}

// Average returns value.avg, falling back to spo2.avg.
func (r *SpO2Response) Average() *float64 {
	if r == nil {
		return nil
	}
	if r.Value != nil && r.Value.Avg != nil {
		return r.Value.Avg
	}
	if r.SpO2 != nil && r.SpO2.Avg != nil {
		return r.SpO2.Avg
	}
	return nil
}

// parseSpO2 accepts an object, an array of objects or an empty payload.
func parseSpO2(b json.RawMessage) (*SpO2Response, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return &SpO2Response{}, nil
	}
	if trimmed[0] == '[' {
		var list []SpO2Response
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return &SpO2Response{}, nil
		}
		return &list[0], nil
	}
	var out SpO2Response
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Float parses v, reporting false for blanks and garbage.
func (v Value) Float() (float64, bool) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
