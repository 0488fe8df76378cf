package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/types"
)

// MemoryDatabase is an in-process shared.Database. Values are copied on the
// way in and out so callers cannot mutate stored state.
type MemoryDatabase struct {
	mu          sync.Mutex
	credentials map[string]types.Credential
	profiles    map[string]types.Profile
	days        map[string]map[civil.Date]types.DayMetrics
	reports     map[string]types.MonthlyReport
	meals       map[string][]types.Meal
	fcmTokens   map[string][]string
	executions  map[string]map[string]interface{}

	CredentialWrites int
	DayWrites        int

	// Optional failure injection.
	SetCredentialErr error
	SetDayMetricsErr error
	MergeProfileErr  error
	AddMealErr       error
}

var _ shared.Database = (*MemoryDatabase)(nil)

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		credentials: make(map[string]types.Credential),
		profiles:    make(map[string]types.Profile),
		days:        make(map[string]map[civil.Date]types.DayMetrics),
		reports:     make(map[string]types.MonthlyReport),
		meals:       make(map[string][]types.Meal),
		fcmTokens:   make(map[string][]string),
		executions:  make(map[string]map[string]interface{}),
	}
}

func credKey(userID string, provider types.Provider) string {
	return userID + "/" + string(provider)
}

func (m *MemoryDatabase) GetCredential(ctx context.Context, userID string, provider types.Provider) (*types.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[credKey(userID, provider)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryDatabase) SetCredential(ctx context.Context, cred *types.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetCredentialErr != nil {
		return m.SetCredentialErr
	}
	m.credentials[credKey(cred.UserID, cred.Provider)] = *cred
	m.CredentialWrites++
	return nil
}

func (m *MemoryDatabase) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return &types.Profile{UserID: userID}, nil
	}
	return &p, nil
}

func (m *MemoryDatabase) MergeProfile(ctx context.Context, userID string, update types.ProfileFields, now time.Time) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MergeProfileErr != nil {
		return nil, m.MergeProfileErr
	}
	p := m.profiles[userID]
	p.UserID = userID
	p.Merge(update)
	p.UpdatedAt = now
	m.profiles[userID] = p
	out := p
	return &out, nil
}

func (m *MemoryDatabase) SetDayMetrics(ctx context.Context, userID string, day types.DayMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetDayMetricsErr != nil {
		return m.SetDayMetricsErr
	}
	if m.days[userID] == nil {
		m.days[userID] = make(map[civil.Date]types.DayMetrics)
	}
	m.days[userID][day.Date] = day
	m.DayWrites++
	return nil
}

func (m *MemoryDatabase) GetDayMetrics(ctx context.Context, userID string, date civil.Date) (*types.DayMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[userID][date]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

func (m *MemoryDatabase) AddMeal(ctx context.Context, meal *types.Meal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddMealErr != nil {
		return m.AddMealErr
	}
	if meal.ID == "" {
		meal.ID = fmt.Sprintf("meal-%d", len(m.meals[meal.UserID])+1)
	}
	m.meals[meal.UserID] = append(m.meals[meal.UserID], *meal)
	return nil
}

func (m *MemoryDatabase) MealsBetween(ctx context.Context, userID string, start, end civil.Date) ([]types.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Meal
	for _, meal := range m.meals[userID] {
		if !meal.WhenDate.Before(start) && !meal.WhenDate.After(end) {
			out = append(out, meal)
		}
	}
	return out, nil
}

func (m *MemoryDatabase) SetMonthlyReport(ctx context.Context, report *types.MonthlyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.UserID+"/"+report.Month] = *report
	return nil
}

// MonthlyReport returns a stored report for assertions.
func (m *MemoryDatabase) MonthlyReport(userID, month string) (types.MonthlyReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[userID+"/"+month]
	return r, ok
}

// SetFCMTokens seeds push tokens for a user.
func (m *MemoryDatabase) SetFCMTokens(userID string, tokens ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fcmTokens[userID] = append([]string(nil), tokens...)
}

func (m *MemoryDatabase) GetFCMTokens(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fcmTokens[userID]...), nil
}

func (m *MemoryDatabase) RemoveFCMTokens(ctx context.Context, userID string, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	var kept []string
	for _, t := range m.fcmTokens[userID] {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	m.fcmTokens[userID] = kept
	return nil
}

func (m *MemoryDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[record.ExecutionID] = map[string]interface{}{
		"service":      record.Service,
		"user_id":      record.UserID,
		"trigger_type": record.TriggerType,
		"status":       string(record.Status),
	}
	return nil
}

func (m *MemoryDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.executions[id]
	if rec == nil {
		rec = make(map[string]interface{})
		m.executions[id] = rec
	}
	for k, v := range data {
		rec[k] = v
	}
	return nil
}

// Execution returns the recorded fields of an execution for assertions.
func (m *MemoryDatabase) Execution(id string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]interface{}, len(m.executions[id]))
	for k, v := range m.executions[id] {
		out[k] = v
	}
	return out
}
