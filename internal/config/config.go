// Package config reads the lifelog settings from the environment, after
// loading a .env file when one exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Store names accepted in LIFELOG_STORE.
const (
	StoreBigQuery = "bigquery"
	StorePostgres = "postgres"
	StoreNotion   = "notion"
	StoreNone     = "none"
)

// Providers accepted in LIFELOG_LLM_PROVIDER and LIFELOG_EMBED_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultCheckinSchedule fires every day at 21:00.
const DefaultCheckinSchedule = "0 21 * * *"

// Config holds every setting of the lifelog commands.
type Config struct {
	LLMProvider   string
	LLMModel      string
	VisionModel   string
	LLMRPS        float64
	EmbedProvider string
	EmbedModel    string
	EmbedDim      int
	OpenAIKey     string
	OpenAIBaseURL string
	GoogleKey     string

	Taxonomy     string
	HomeCurrency string
	Timezone     string

	Stores          []string
	DatabaseURL     string
	BQProject       string
	BQDataset       string
	NotionToken     string
	NotionFinanceDB string
	NotionJournalDB string
	GCSBucket       string

	CheckinCron    string
	CheckinWebhook string

	UserID    string
	LogLevel  string
	LogFormat string
	Port      string
	APIRPS    float64
	APIBurst  int
	Workers   int
}

// Load reads .env from the working directory, if present, then the
// environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. Variables already set in the
// environment win over the file.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (Config, error) {
	var errs []error
	c := Config{
		LLMProvider:   strings.ToLower(env("LIFELOG_LLM_PROVIDER", ProviderGemini)),
		LLMModel:      env("LIFELOG_LLM_MODEL", ""),
		VisionModel:   env("LIFELOG_VISION_MODEL", ""),
		LLMRPS:        floatEnv("LIFELOG_LLM_RPS", 2, &errs),
		EmbedProvider: strings.ToLower(env("LIFELOG_EMBED_PROVIDER", ProviderOpenAI)),
		EmbedModel:    env("LIFELOG_EMBED_MODEL", ""),
		EmbedDim:      intEnv("LIFELOG_EMBED_DIM", 1536, &errs),
		OpenAIKey:     env("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env("OPENAI_BASE_URL", ""),
		GoogleKey:     env("GOOGLE_API_KEY", ""),

		Taxonomy:     env("LIFELOG_TAXONOMY", "household"),
		HomeCurrency: env("LIFELOG_HOME_CURRENCY", ""),
		Timezone:     env("LIFELOG_TIMEZONE", "America/Argentina/Buenos_Aires"),

		Stores:          splitList(env("LIFELOG_STORE", StoreNone)),
		DatabaseURL:     env("DATABASE_URL", ""),
		BQProject:       env("BQ_PROJECT", ""),
		BQDataset:       env("BQ_DATASET", "lifelog"),
		NotionToken:     env("NOTION_TOKEN", ""),
		NotionFinanceDB: env("NOTION_FINANCE_DB", ""),
		NotionJournalDB: env("NOTION_JOURNAL_DB", ""),
		GCSBucket:       env("GCS_BUCKET", ""),

		CheckinCron:    env("LIFELOG_CHECKIN_CRON", DefaultCheckinSchedule),
		CheckinWebhook: env("LIFELOG_CHECKIN_WEBHOOK", ""),

		UserID:    env("LIFELOG_USER_ID", ""),
		LogLevel:  env("LIFELOG_LOG_LEVEL", "info"),
		LogFormat: env("LIFELOG_LOG_FORMAT", "json"),
		Port:      env("PORT", "8080"),
		APIRPS:    floatEnv("LIFELOG_API_RPS", 5, &errs),
		APIBurst:  intEnv("LIFELOG_API_BURST", 20, &errs),
		Workers:   intEnv("LIFELOG_WORKERS", 2, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Validate checks provider names and the settings each selected store needs.
func (c Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("LIFELOG_LLM_PROVIDER: unknown provider %q", c.LLMProvider))
	}
	switch c.EmbedProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("LIFELOG_EMBED_PROVIDER: unknown provider %q", c.EmbedProvider))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("LIFELOG_EMBED_DIM: must be positive, got %d", c.EmbedDim))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("LIFELOG_TIMEZONE: %w", err))
	}

	for _, s := range c.Stores {
		switch s {
		case StoreNone:
		case StorePostgres:
			if c.DatabaseURL == "" {
				errs = append(errs, errors.New("LIFELOG_STORE=postgres requires DATABASE_URL"))
			}
		case StoreBigQuery:
			if c.BQProject == "" || c.BQDataset == "" {
				errs = append(errs, errors.New("LIFELOG_STORE=bigquery requires BQ_PROJECT and BQ_DATASET"))
			}
		case StoreNotion:
			if c.NotionToken == "" {
				errs = append(errs, errors.New("LIFELOG_STORE=notion requires NOTION_TOKEN"))
			}
			if c.NotionFinanceDB == "" && c.NotionJournalDB == "" {
				errs = append(errs, errors.New("LIFELOG_STORE=notion requires NOTION_FINANCE_DB or NOTION_JOURNAL_DB"))
			}
		default:
			errs = append(errs, fmt.Errorf("LIFELOG_STORE: unknown store %q", s))
		}
	}
	return errors.Join(errs...)
}

// Location is the configured time zone. Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64, errs *[]error) float64 {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
