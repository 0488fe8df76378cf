package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/coaching"
	"github.com/fitline/server/pkg/domain/metrics"
	"github.com/fitline/server/pkg/persistence"
	"github.com/fitline/server/pkg/testing/mocks"
	"github.com/fitline/server/pkg/types"
)

type fakeTokens struct {
	connected map[types.Provider]string
}

func (f *fakeTokens) AuthCodeURL(provider types.Provider, state string) (string, error) {
	if provider == types.ProviderHealthPlanet {
		return "", shared.ErrConfigurationMissing
	}
	return "https://www.fitbit.com/oauth2/authorize?state=" + state, nil
}

func (f *fakeTokens) Connect(ctx context.Context, provider types.Provider, userID, code string) (*types.Credential, error) {
	f.connected[provider] = userID + ":" + code
	return &types.Credential{Provider: provider, UserID: userID, AccessToken: "a", ExpiresAt: 1741600000}, nil
}

func (f *fakeTokens) Credential(ctx context.Context, provider types.Provider, userID string) (*types.Credential, error) {
	return nil, shared.ErrNotConnected
}

type fakeMetrics struct{}

func (fakeMetrics) FetchToday(ctx context.Context, userID string) (types.DayMetrics, error) {
	return types.DayMetrics{Date: civil.Date{Year: 2025, Month: 3, Day: 10}, StepsTotal: 4200}, nil
}

func (fakeMetrics) FetchDayRange(ctx context.Context, userID string, n int) ([]types.DayMetrics, error) {
	days := make([]types.DayMetrics, n)
	for i := range days {
		days[i] = types.DayMetrics{Date: civil.Date{Year: 2025, Month: 3, Day: 4 + i}, StepsTotal: 100, CaloriesTotal: 2000}
	}
	return days, nil
}

func (fakeMetrics) FetchBodyComposition(ctx context.Context, userID string, n int) (*metrics.BodyComposition, error) {
	return nil, shared.ErrNotConnected
}

type fakeCoaching struct{ dry, show bool }

func (f *fakeCoaching) Daily(ctx context.Context, userID string) (*coaching.Result, error) {
	return nil, shared.ErrUpstream
}

func (f *fakeCoaching) Weekly(ctx context.Context, userID string, dry, show bool) (*coaching.Result, error) {
	f.dry, f.show = dry, show
	return &coaching.Result{Kind: coaching.KindWeekly, OK: true, DryRun: dry}, nil
}

func (f *fakeCoaching) Monthly(ctx context.Context, userID string) (*coaching.Result, error) {
	return &coaching.Result{Kind: coaching.KindMonthly, OK: true}, nil
}

type fixture struct {
	handler http.Handler
	tokens  *fakeTokens
	coach   *fakeCoaching
	images  *mocks.MockImageDescriber
	db      *mocks.MemoryDatabase
}

var jst = time.FixedZone("JST", 9*60*60)

func newFixture() *fixture {
	db := mocks.NewMemoryDatabase()
	f := &fixture{
		tokens: &fakeTokens{connected: map[types.Provider]string{}},
		coach:  &fakeCoaching{},
		images: &mocks.MockImageDescriber{},
		db:     db,
	}
	coord := persistence.NewCoordinator(db,
		persistence.WithFetchers(fakeMetrics{}, nil),
		persistence.WithLocation(jst),
		persistence.WithClock(func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, jst) }),
	)
	f.handler = NewServer(Deps{
		Tokens:      f.tokens,
		Metrics:     fakeMetrics{},
		Persistence: coord,
		Profiles:    db,
		Meals:       coord,
		Images:      f.images,
		Coaching:    f.coach,
	}, "secret", "demo", nil).Routes()
	return f
}

func (f *fixture) do(method, target string, body string, gated bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if gated {
		req.Header.Set(TokenHeader, "secret")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestTokenGate(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/fitbit/today", "", false).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/fitbit/today", "", true).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "", false).Code)

	for _, token := range []string{"secre", "secret2", "SECRET"} {
		req := httptest.NewRequest(http.MethodGet, "/fitbit/today", nil)
		req.Header.Set(TokenHeader, token)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, token)
	}
}

func TestLoginAndCallback(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/fitbit/login?user_id=u1", "", false)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "state=u1")

	rec = f.do(http.MethodGet, "/healthplanet/login", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(http.MethodGet, "/garmin/login", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/fitbit/auth?code=abc&state=u1", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:abc", f.tokens.connected[types.ProviderFitbit])

	form := url.Values{"code": {"pasted"}}
	req := httptest.NewRequest(http.MethodPost, "/healthplanet/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "demo:pasted", f.tokens.connected[types.ProviderHealthPlanet])

	rec = f.do(http.MethodGet, "/fitbit/auth", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLast7IncludesSummary(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/fitbit/last7", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decode(t, rec)
	days := m["days"].([]interface{})
	assert.Len(t, days, 7)
	first := days[0].(map[string]interface{})
	assert.Equal(t, "2025-03-04", first["date"])
	assert.Equal(t, "unavailable", first["sleep_line"])
	assert.Nil(t, first["sleep"])

	summary := m["summary"].(map[string]interface{})
	assert.Equal(t, float64(700), summary["steps_sum"])
	assert.Equal(t, float64(14000), summary["calories_sum"])
}

func TestSaveLast7(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/fitbit/save/last7", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decode(t, rec)
	assert.Equal(t, float64(7), m["saved_count"])
	assert.Equal(t, 7, f.db.DayWrites)
}

func TestProfileRoundTrip(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/ui/profile", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["profile"])

	rec = f.do(http.MethodPost, "/ui/profile", `{"age": 41, "past_history": ["asthma"]}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	wh := decode(t, rec)["warehouse"].(map[string]interface{})
	assert.Equal(t, types.ReasonWarehouseDisabled, wh["reason"])

	rec = f.do(http.MethodPost, "/ui/profile", `{"sex": "unknown"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/ui/profile", "", true)
	profile := decode(t, rec)["profile"].(map[string]interface{})
	assert.Equal(t, float64(41), profile["age"])
}

func TestErrorMapping(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusConflict, f.do(http.MethodGet, "/healthplanet/innerscan", "", true).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/healthplanet/innerscan?days=0", "", true).Code)
	assert.Equal(t, http.StatusBadGateway, f.do(http.MethodPost, "/coach/daily", "", true).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodGet, "/tokens/fitbit", "", true).Code)
}

func TestCoachWeeklyFlags(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/coach/weekly?dry=1&show_prompt=true", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.coach.dry)
	assert.True(t, f.coach.show)
}

func TestMealTextRoundTrip(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/ui/meal", `{"when":"2025-03-09T12:30","text":"ramen","kcal":650}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/ui/meal", `{"text":"natto rice"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/meals/last7", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var byDay map[string][]mealView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byDay))
	require.Len(t, byDay["2025-03-09"], 1)
	assert.Equal(t, "ramen", byDay["2025-03-09"][0].Text)
	require.NotNil(t, byDay["2025-03-09"][0].Kcal)
	assert.Equal(t, 650.0, *byDay["2025-03-09"][0].Kcal)
	require.Len(t, byDay["2025-03-10"], 1)
	assert.Equal(t, "text", byDay["2025-03-10"][0].Source)
}

func TestMealText_Invalid(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/ui/meal", `{"text":"  "}`, true).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/ui/meal", `{"text":"x","when":"yesterday"}`, true).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/ui/meal", `{"text":"x","kcal":-1}`, true).Code)
}

func mealImageRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("when", "2025-03-10T07:45"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="breakfast.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(TokenHeader, "secret")
	return req
}

func TestMealImage(t *testing.T) {
	f := newFixture()
	var gotMIME string
	f.images.DescribeImageFunc = func(ctx context.Context, mime string, data []byte) (string, error) {
		gotMIME = mime
		assert.Len(t, data, 4)
		return "grilled salmon, rice, miso soup (~600 kcal)", nil
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, mealImageRequest(t, "/ui/meal_image?dry=true"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stage":"received"`)
	assert.Empty(t, gotMIME)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, mealImageRequest(t, "/ui/meal_image"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", gotMIME)

	var resp struct {
		Preview string   `json:"preview"`
		Meal    mealView `json:"meal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "grilled salmon, rice, miso soup (~600 kcal)", resp.Preview)
	assert.Equal(t, "image", resp.Meal.Source)
	assert.Equal(t, "2025-03-10", resp.Meal.WhenDate)
}

func TestMealImage_DescriberFailure(t *testing.T) {
	f := newFixture()
	f.images.DescribeImageFunc = func(ctx context.Context, mime string, data []byte) (string, error) {
		return "", shared.ErrConfigurationMissing
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, mealImageRequest(t, "/ui/meal_image"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	meals, err := f.db.MealsBetween(context.Background(), "demo", civil.Date{Year: 2025, Month: 3, Day: 1}, civil.Date{Year: 2025, Month: 3, Day: 31})
	require.NoError(t, err)
	assert.Empty(t, meals)
}
