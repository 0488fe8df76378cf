package healthplanet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/fitline/server/pkg"
)

var jst = time.FixedZone("JST", 9*60*60)

func TestInnerscan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status/innerscan.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "hp-token", q.Get("access_token"))
		assert.Equal(t, "1", q.Get("date"))
		assert.Equal(t, "6021,6022", q.Get("tag"))
		assert.Equal(t, "20250304000000", q.Get("from"))
		assert.Equal(t, "20250310235959", q.Get("to"))
		_, _ = w.Write([]byte(`{"birth_date":"19900101","height":"170","sex":"male","data":[
			{"date":"202503100712","keydata":"64.20","model":"01000099","tag":"6021"},
			{"date":"202503100712","keydata":"18.5","model":"01000099","tag":"6022"},
			{"date":"202503080705","keydata":"64.80","model":"01000099","tag":"6021"},
			{"date":"202503090700","keydata":"","model":"01000099","tag":"6021"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	c.BaseURL = srv.URL

	from := time.Date(2025, 3, 4, 0, 0, 0, 0, jst)
	to := time.Date(2025, 3, 10, 23, 59, 59, 0, jst)
	res, err := c.Innerscan(context.Background(), "hp-token", from, to)
	require.NoError(t, err)
	require.Len(t, res.Data, 4)

	samples := res.Samples("demo", jst)
	require.Len(t, samples, 2)

	assert.Equal(t, time.Date(2025, 3, 8, 7, 5, 0, 0, jst), samples[0].MeasuredAt)
	assert.Nil(t, samples[0].BodyFatPct)

	require.NotNil(t, samples[1].WeightKg)
	require.NotNil(t, samples[1].BodyFatPct)
	assert.Equal(t, 64.2, *samples[1].WeightKg)
	assert.Equal(t, 18.5, *samples[1].BodyFatPct)
	assert.Equal(t, "demo", samples[1].UserID)
}

func TestInnerscan_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	c.BaseURL = srv.URL

	_, err := c.Innerscan(context.Background(), "secret-token", time.Now(), time.Now())
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestParseMeasuredAt(t *testing.T) {
	at, err := ParseMeasuredAt("20250310071230", jst)
	require.NoError(t, err)
	assert.Equal(t, 30, at.Second())

	_, err = ParseMeasuredAt("2025-03-10", jst)
	assert.Error(t, err)
}

func TestInnerscan_TimeoutKeepsTokenOutOfError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(&http.Client{Timeout: 50 * time.Millisecond})
	c.BaseURL = srv.URL

	from := time.Date(2025, 3, 4, 0, 0, 0, 0, jst)
	to := time.Date(2025, 3, 10, 23, 59, 59, 0, jst)
	_, err := c.Innerscan(context.Background(), "SECRET-ACCESS-TOKEN", from, to)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrTimeout)
	assert.False(t, strings.Contains(err.Error(), "SECRET-ACCESS-TOKEN"), err.Error())
}
