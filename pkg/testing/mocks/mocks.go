package mocks

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitline/server/pkg/types"
)

// --- Mock Warehouse ---
type MockWarehouse struct {
	OverwriteDayMetricsFunc      func(ctx context.Context, userID string, days []types.DayMetrics) error
	OverwriteBodyCompositionFunc func(ctx context.Context, userID string, samples []types.BodyCompositionSample) error
	MergeProfileFunc             func(ctx context.Context, profile *types.Profile) error
	DeleteProfileFunc            func(ctx context.Context, userID string) error
	InsertProfileFunc            func(ctx context.Context, profile *types.Profile) error
	InsertMealFunc               func(ctx context.Context, meal *types.Meal) error
	RecentMealsFunc              func(ctx context.Context, userID string, end civil.Date, days, limit int) ([]types.Meal, error)
	MonthlyActivityStatsFunc     func(ctx context.Context, userID string, end civil.Date, days int) (*types.MonthlyStats, error)
	InsertMonthlyReportFunc      func(ctx context.Context, report *types.MonthlyReport) error
}

func (m *MockWarehouse) OverwriteDayMetrics(ctx context.Context, userID string, days []types.DayMetrics) error {
	if m.OverwriteDayMetricsFunc != nil {
		return m.OverwriteDayMetricsFunc(ctx, userID, days)
	}
	return nil
}
func (m *MockWarehouse) OverwriteBodyComposition(ctx context.Context, userID string, samples []types.BodyCompositionSample) error {
	if m.OverwriteBodyCompositionFunc != nil {
		return m.OverwriteBodyCompositionFunc(ctx, userID, samples)
	}
	return nil
}
func (m *MockWarehouse) MergeProfile(ctx context.Context, profile *types.Profile) error {
	if m.MergeProfileFunc != nil {
		return m.MergeProfileFunc(ctx, profile)
	}
	return nil
}
func (m *MockWarehouse) DeleteProfile(ctx context.Context, userID string) error {
	if m.DeleteProfileFunc != nil {
		return m.DeleteProfileFunc(ctx, userID)
	}
	return nil
}
func (m *MockWarehouse) InsertProfile(ctx context.Context, profile *types.Profile) error {
	if m.InsertProfileFunc != nil {
		return m.InsertProfileFunc(ctx, profile)
	}
	return nil
}
func (m *MockWarehouse) InsertMeal(ctx context.Context, meal *types.Meal) error {
	if m.InsertMealFunc != nil {
		return m.InsertMealFunc(ctx, meal)
	}
	return nil
}
func (m *MockWarehouse) RecentMeals(ctx context.Context, userID string, end civil.Date, days, limit int) ([]types.Meal, error) {
	if m.RecentMealsFunc != nil {
		return m.RecentMealsFunc(ctx, userID, end, days, limit)
	}
	return nil, nil
}
func (m *MockWarehouse) MonthlyActivityStats(ctx context.Context, userID string, end civil.Date, days int) (*types.MonthlyStats, error) {
	if m.MonthlyActivityStatsFunc != nil {
		return m.MonthlyActivityStatsFunc(ctx, userID, end, days)
	}
	return &types.MonthlyStats{}, nil
}
func (m *MockWarehouse) InsertMonthlyReport(ctx context.Context, report *types.MonthlyReport) error {
	if m.InsertMonthlyReportFunc != nil {
		return m.InsertMonthlyReportFunc(ctx, report)
	}
	return nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}
func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Notifier ---
type MockNotifier struct {
	SendFunc func(ctx context.Context, userID, title, body string) types.NotifyResult
}

func (m *MockNotifier) Send(ctx context.Context, userID, title, body string) types.NotifyResult {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, userID, title, body)
	}
	return types.NotifyResult{Delivered: true}
}

// --- Mock Text Generator ---
type MockTextGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "mock-text", nil
}

// --- Mock Image Describer ---
type MockImageDescriber struct {
	DescribeImageFunc func(ctx context.Context, mime string, data []byte) (string, error)
}

func (m *MockImageDescriber) DescribeImage(ctx context.Context, mime string, data []byte) (string, error) {
	if m.DescribeImageFunc != nil {
		return m.DescribeImageFunc(ctx, mime, data)
	}
	return "mock-meal", nil
}
