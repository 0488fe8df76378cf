package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	shared "github.com/fitline/server/pkg"
)

func TestParseErrorResponse_Success(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Body:       http.NoBody,
	}

	if err := ParseErrorResponse(resp); err != nil {
		t.Errorf("Expected nil error for 200 response, got: %v", err)
	}
}

func TestParseErrorResponse_Error(t *testing.T) {
	body := `{"errors":[{"errorType":"validation","message":"Invalid date"}]}`
	resp := &http.Response{
		StatusCode: 400,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("GET", "https://api.fitbit.com/1/user/-/spo2/date/x.json", nil),
	}

	err := ParseErrorResponse(resp)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", httpErr.StatusCode)
	}
	if !strings.Contains(httpErr.Body, "Invalid date") {
		t.Errorf("Expected body to contain error message, got: %s", httpErr.Body)
	}

	// Body is re-wrapped
	again, _ := io.ReadAll(resp.Body)
	if string(again) != body {
		t.Errorf("Expected body to be readable again, got %q", string(again))
	}
}

func TestHTTPError_Taxonomy(t *testing.T) {
	tests := []struct {
		status       int
		unauthorized bool
	}{
		{401, true},
		{403, true},
		{429, false},
		{500, false},
		{503, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := fmt.Errorf("steps: %w", &HTTPError{StatusCode: tt.status})
			if got := errors.Is(err, shared.ErrUnauthorized); got != tt.unauthorized {
				t.Errorf("Is(ErrUnauthorized) = %v, want %v", got, tt.unauthorized)
			}
			if got := errors.Is(err, shared.ErrUnavailable); got == tt.unauthorized {
				t.Errorf("Is(ErrUnavailable) = %v, want %v", got, !tt.unauthorized)
			}
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	if err := ClassifyTransportError(context.DeadlineExceeded); !errors.Is(err, shared.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if err := ClassifyTransportError(errors.New("connection refused")); !errors.Is(err, shared.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if ClassifyTransportError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestClassifyTransportError_DropsQuery(t *testing.T) {
	err := ClassifyTransportError(&url.Error{
		Op:  "Get",
		URL: "https://www.healthplanet.jp/status/innerscan.json?access_token=SECRET&tag=6021",
		Err: errors.New("connection reset by peer"),
	})
	if !errors.Is(err, shared.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRET") || strings.Contains(err.Error(), "access_token") {
		t.Errorf("Expected query to be dropped, got %v", err)
	}
	if !strings.Contains(err.Error(), "https://www.healthplanet.jp/status/innerscan.json") {
		t.Errorf("Expected path to be kept, got %v", err)
	}
}

func TestClassifyTransportError_TimeoutDropsQuery(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, doErr := client.Get(server.URL + "/status/innerscan.json?access_token=SECRET-ACCESS-TOKEN")
	if doErr == nil {
		t.Fatal("Expected client timeout")
	}

	err := ClassifyTransportError(doErr)
	if !errors.Is(err, shared.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRET-ACCESS-TOKEN") {
		t.Errorf("Expected token to be redacted, got %v", err)
	}
}
