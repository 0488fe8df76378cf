// Package fitbit is a thin client for the Fitbit Web API resources the
// aggregator reads. It holds no token state; callers pass the bearer token.
package fitbit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/civil"

	httputil "github.com/fitline/server/pkg/infrastructure/http"
)

const (
	DefaultBaseURL = "https://api.fitbit.com"
	DefaultTimeout = 30 * time.Second
)

// Client is an API client for the Fitbit Web API
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a client. A nil httpClient gets the default timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{BaseURL: DefaultBaseURL, client: httpClient}
}

// Steps returns the daily step series for [start, end].
func (c *Client) Steps(ctx context.Context, accessToken string, start, end civil.Date) (*SeriesResponse, error) {
	path := fmt.Sprintf("/1/user/-/activities/steps/date/%s/%s.json", start, end)
	var out stepsPayload
	raw, err := c.get(ctx, accessToken, path, &out)
	if err != nil {
		return nil, err
	}
	return &SeriesResponse{Points: out.Points, Raw: raw}, nil
}

// Calories returns the daily calories-out series for [start, end].
func (c *Client) Calories(ctx context.Context, accessToken string, start, end civil.Date) (*SeriesResponse, error) {
	path := fmt.Sprintf("/1/user/-/activities/calories/date/%s/%s.json", start, end)
	var out caloriesPayload
	raw, err := c.get(ctx, accessToken, path, &out)
	if err != nil {
		return nil, err
	}
	return &SeriesResponse{Points: out.Points, Raw: raw}, nil
}

// Sleep returns every sleep log whose dateOfSleep falls in [start, end].
func (c *Client) Sleep(ctx context.Context, accessToken string, start, end civil.Date) (*SleepResponse, error) {
	path := fmt.Sprintf("/1.2/user/-/sleep/date/%s/%s.json", start, end)
	var out SleepResponse
	raw, err := c.get(ctx, accessToken, path, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

// SpO2 returns the SpO2 summary for one day. Days without a reading come
// back as an empty object or array.
func (c *Client) SpO2(ctx context.Context, accessToken string, day civil.Date) (*SpO2Response, error) {
	path := fmt.Sprintf("/1/user/-/spo2/date/%s.json", day)
	var out json.RawMessage
	raw, err := c.get(ctx, accessToken, path, &out)
	if err != nil {
		return nil, err
	}
	resp, err := parseSpO2(out)
	if err != nil {
		return nil, httputil.DecodeError(err)
	}
	resp.Raw = raw
	return resp, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out interface{}) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "ja_JP")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, httputil.ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.ClassifyTransportError(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, httputil.DecodeError(fmt.Errorf("empty body from %s", path))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, httputil.DecodeError(err)
	}
	return body, nil
}
