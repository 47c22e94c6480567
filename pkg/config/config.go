// Package config loads the core's flat option set from the environment using
// struct tags (caarlos0/env) and an optional .env file (godotenv): typed
// struct tags, cached per type, .env loaded once on first use.
package config

import (
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	cacheMu    sync.Mutex
	cache      = map[reflect.Type]any{}
)

func loadDotenv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load() // optional; absence is not an error
	})
}

// Load parses environment variables into dst (a pointer to a struct tagged
// with `env:"..."`), caching the result per concrete type so repeat callers
// within one process observe the same values.
func Load[T any](dst *T) error {
	loadDotenv()

	t := reflect.TypeOf(*dst)
	cacheMu.Lock()
	if cached, ok := cache[t]; ok {
		cacheMu.Unlock()
		*dst = *(cached.(*T))
		return nil
	}
	cacheMu.Unlock()

	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", t, err)
	}

	cacheMu.Lock()
	cache[t] = dst
	cacheMu.Unlock()
	return nil
}

// MustLoad is Load but panics on failure, for use at process startup.
func MustLoad[T any](dst *T) {
	if err := Load(dst); err != nil {
		panic(err)
	}
}

// AppConfig is the flat option set described in spec §6.
type AppConfig struct {
	PreferredProvider   string   `env:"CONTENTCORE_PREFERRED_PROVIDER" envDefault:"anthropic"`
	AvailableProviders  []string `env:"CONTENTCORE_AVAILABLE_PROVIDERS" envSeparator:"," envDefault:"anthropic,openai"`
	OpenAIAPIKey        string   `env:"OPENAI_API_KEY"`
	AnthropicAPIKey     string   `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey        string   `env:"GEMINI_API_KEY"`
	AWSRegion           string   `env:"AWS_REGION" envDefault:"us-east-1"`

	DisplayVariant string `env:"CONTENTCORE_DISPLAY_VARIANT" envDefault:"black"`
	DisplayWSURL   string `env:"CONTENTCORE_DISPLAY_WS_URL"`

	AutomationBusURL   string        `env:"CONTENTCORE_BUS_URL"`
	AutomationBusToken string        `env:"CONTENTCORE_BUS_TOKEN"`
	AutomationReconnect time.Duration `env:"CONTENTCORE_BUS_RECONNECT" envDefault:"5s"`

	TriggerConfigPath string `env:"CONTENTCORE_TRIGGER_CONFIG" envDefault:"./triggers.yaml"`

	PersistenceDSN      string `env:"CONTENTCORE_PERSISTENCE_DSN"`
	PersistenceBackend  string `env:"CONTENTCORE_PERSISTENCE_BACKEND" envDefault:"postgres"`

	ThrottleLogWindow time.Duration `env:"CONTENTCORE_THROTTLE_WINDOW" envDefault:"5m"`
	ThrottleLogMax    int           `env:"CONTENTCORE_THROTTLE_MAX_ENTRIES" envDefault:"100"`

	RetryMaxAttempts int           `env:"CONTENTCORE_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay   time.Duration `env:"CONTENTCORE_RETRY_BASE_DELAY" envDefault:"500ms"`
	RetryMaxDelay    time.Duration `env:"CONTENTCORE_RETRY_MAX_DELAY" envDefault:"10s"`

	DataFetchTimeout time.Duration `env:"CONTENTCORE_DATA_TIMEOUT" envDefault:"10s"`
	AITimeout        time.Duration `env:"CONTENTCORE_AI_TIMEOUT" envDefault:"30s"`
	BusTimeout       time.Duration `env:"CONTENTCORE_BUS_TIMEOUT" envDefault:"60s"`

	SlackWebhookURL string `env:"CONTENTCORE_SLACK_WEBHOOK_URL"`

	HTTPAddr string `env:"CONTENTCORE_HTTP_ADDR" envDefault:":8090"`
}

// Getenv is a small indirection point kept for tests that stub individual
// variables without going through the full env.Parse cycle.
var Getenv = os.Getenv
