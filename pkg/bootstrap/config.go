package bootstrap

import (
	"fmt"
	"os"
	"strings"
	"time"

	shared "github.com/fitline/server/pkg"
)

// Config holds standard configuration for all services
type Config struct {
	Env       string
	ProjectID string

	// BigQuery
	EnableBigQuery   bool
	BQDataset        string
	BQLocation       string
	BQTableFitbit    string
	BQTableBody      string
	BQTableProfiles  string
	BQTableMeals     string
	BQTableMonthly   string
	RawArchiveBucket string

	// OAuth providers
	FitbitClientID           string
	FitbitClientSecret       string
	HealthPlanetClientID     string
	HealthPlanetClientSecret string
	HealthPlanetScope        string
	RunBaseURL               string

	// Collaborators
	GeminiAPIKey string
	GeminiModel  string

	APIToken      string
	RedisURL      string
	EnablePublish bool
	SentryDSN     string

	TimezoneName  string
	DefaultUserID string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		projectID = shared.ProjectID // Fallback
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		ProjectID: projectID,

		EnableBigQuery:   getEnv("ENABLE_BIGQUERY", "true") == "true",
		BQDataset:        getEnv("BQ_DATASET", "health_raw"),
		BQLocation:       getEnv("BQ_LOCATION", "asia-northeast1"),
		BQTableFitbit:    getEnv("BQ_TABLE_FITBIT", "fitbit_daily"),
		BQTableBody:      getEnv("BQ_TABLE_BODY", "body_composition"),
		BQTableProfiles:  getEnv("BQ_TABLE_PROFILES", "profiles"),
		BQTableMeals:     getEnv("BQ_TABLE_MEALS", "meals"),
		BQTableMonthly:   getEnv("BQ_TABLE_MONTHLY", "monthly_reports"),
		RawArchiveBucket: os.Getenv("RAW_ARCHIVE_BUCKET"),

		FitbitClientID:           os.Getenv("FITBIT_CLIENT_ID"),
		FitbitClientSecret:       os.Getenv("FITBIT_CLIENT_SECRET"),
		HealthPlanetClientID:     os.Getenv("HEALTHPLANET_CLIENT_ID"),
		HealthPlanetClientSecret: os.Getenv("HEALTHPLANET_CLIENT_SECRET"),
		HealthPlanetScope:        getEnv("HEALTHPLANET_SCOPE", "innerscan"),
		RunBaseURL:               strings.TrimRight(os.Getenv("RUN_BASE_URL"), "/"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		APIToken:      os.Getenv("UI_API_TOKEN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		EnablePublish: os.Getenv("ENABLE_PUBLISH") == "true",
		SentryDSN:     os.Getenv("SENTRY_DSN"),

		TimezoneName:  getEnv("TZ_NAME", shared.DefaultTimezone),
		DefaultUserID: getEnv("DEFAULT_USER_ID", shared.DefaultUserID),
	}
}

// Location resolves TimezoneName. Calendar days are cut in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.TimezoneName, err)
	}
	return loc, nil
}

// FitbitRedirectURL is the OAuth callback registered with Fitbit.
func (c *Config) FitbitRedirectURL() string {
	if c.RunBaseURL == "" {
		return ""
	}
	return c.RunBaseURL + "/fitbit/auth"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
