// Package healthplanet reads body-composition measurements from the
// HealthPlanet status API.
package healthplanet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	httputil "github.com/fitline/server/pkg/infrastructure/http"
	"github.com/fitline/server/pkg/types"
)

const (
	DefaultBaseURL = "https://www.healthplanet.jp"
	DefaultTimeout = 60 * time.Second

	TagWeight  = "6021"
	TagBodyFat = "6022"

	// dateModeMeasured filters by measurement time rather than upload time.
	dateModeMeasured = "1"

	queryTimeLayout = "20060102150405"
)

type Client struct {
	BaseURL string
	client  *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{BaseURL: DefaultBaseURL, client: httpClient}
}

// Entry is one tagged reading.
type Entry struct {
	Date    string `json:"date"`
	KeyData string `json:"keydata"`
	Model   string `json:"model"`
	Tag     string `json:"tag"`
}

type InnerscanResponse struct {
	BirthDate string  `json:"birth_date"`
	Height    string  `json:"height"`
	Sex       string  `json:"sex"`
	Data      []Entry `json:"data"`
	Raw       []byte  `json:"-"`
}

// Innerscan fetches weight and body-fat readings measured in [from, to].
func (c *Client) Innerscan(ctx context.Context, accessToken string, from, to time.Time, tags ...string) (*InnerscanResponse, error) {
	if len(tags) == 0 {
		tags = []string{TagWeight, TagBodyFat}
	}
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("date", dateModeMeasured)
	q.Set("tag", strings.Join(tags, ","))
	q.Set("from", from.Format(queryTimeLayout))
	q.Set("to", to.Format(queryTimeLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status/innerscan.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

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
		return nil, httputil.DecodeError(fmt.Errorf("empty innerscan body"))
	}

	var out InnerscanResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, httputil.DecodeError(err)
	}
	out.Raw = body
	return &out, nil
}

// ParseMeasuredAt reads a yyyymmddHHMM (or yyyymmddHHMMSS) timestamp in loc.
func ParseMeasuredAt(s string, loc *time.Location) (time.Time, error) {
	switch len(s) {
	case 12:
		return time.ParseInLocation("200601021504", s, loc)
	case 14:
		return time.ParseInLocation(queryTimeLayout, s, loc)
	}
	return time.Time{}, fmt.Errorf("unexpected measurement date %q", s)
}

// Samples groups entries sharing a timestamp into one sample each, in
// ascending time order. Unparseable entries are skipped.
func (r *InnerscanResponse) Samples(userID string, loc *time.Location) []types.BodyCompositionSample {
	byTime := make(map[string]*types.BodyCompositionSample)
	for _, e := range r.Data {
		v, err := strconv.ParseFloat(strings.TrimSpace(e.KeyData), 64)
		if err != nil {
			continue
		}
		at, err := ParseMeasuredAt(e.Date, loc)
		if err != nil {
			continue
		}

		s, ok := byTime[e.Date]
		if !ok {
			s = &types.BodyCompositionSample{UserID: userID, MeasuredAt: at, SourceTag: e.Model}
			byTime[e.Date] = s
		}
		switch e.Tag {
		case TagWeight:
			s.WeightKg = &v
		case TagBodyFat:
			s.BodyFatPct = &v
		}
	}

	keys := make([]string, 0, len(byTime))
	for k := range byTime {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.BodyCompositionSample, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byTime[k])
	}
	types.SortSamples(out)
	return out
}
