package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is built once at startup and handed to every component by value.
type Config struct {
	Riot    RiotConfig    `yaml:"riot"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Paths   PathsConfig   `yaml:"paths"`
	Items   ItemsConfig   `yaml:"items"`
	Patches PatchesConfig `yaml:"patches"`
	Stats   StatsConfig   `yaml:"stats"`
	Publish PublishConfig `yaml:"publish"`
	Log     LogConfig     `yaml:"log"`
}

type RiotConfig struct {
	APIKey          string        `yaml:"-"`
	PlatformHost    string        `yaml:"platform_host" validate:"required,url"`
	RegionHost      string        `yaml:"region_host" validate:"required,url"`
	RankedQueueID   int           `yaml:"ranked_queue_id" validate:"gte=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	ShortWindow     LimitWindow   `yaml:"short_window"`
	LongWindow      LimitWindow   `yaml:"long_window"`
	RateLimitWait   time.Duration `yaml:"rate_limit_wait" validate:"gt=0"`
	RetryAfterPad   time.Duration `yaml:"retry_after_pad" validate:"gte=0"`
	ServerErrorWait time.Duration `yaml:"server_error_wait" validate:"gt=0"`
}

// LimitWindow allows Requests calls per Period.
type LimitWindow struct {
	Requests int           `yaml:"requests" validate:"gt=0"`
	Period   time.Duration `yaml:"period" validate:"gt=0"`
}

type CrawlConfig struct {
	TargetMatches   int           `yaml:"target_matches" validate:"gt=0"`
	PageSize        int           `yaml:"page_size" validate:"gt=0,lte=200"`
	PagesPerSeed    int           `yaml:"pages_per_seed" validate:"gt=0"`
	RequestInterval time.Duration `yaml:"request_interval" validate:"gte=0"`
	LadderTiers     []string      `yaml:"ladder_tiers" validate:"required,min=1,dive,oneof=challenger grandmaster master"`
	TierPause       time.Duration `yaml:"tier_pause" validate:"gte=0"`
	ShuffleSeed     int64         `yaml:"shuffle_seed"`
}

// PathsConfig holds file locations. Everything except DataDir is resolved
// relative to DataDir unless absolute.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" validate:"required"`
	RawDir    string `yaml:"raw_dir" validate:"required"`
	DB        string `yaml:"db" validate:"required"`
	SeenFile  string `yaml:"seen_file" validate:"required"`
	StateFile string `yaml:"state_file" validate:"required"`
	ExportDir string `yaml:"export_dir" validate:"required"`
}

type ItemsConfig struct {
	// Components are basic items excluded from combination stats.
	Components []string `yaml:"components" validate:"dive,required"`
}

type PatchesConfig struct {
	Windows       []PatchWindow `yaml:"windows" validate:"dive"`
	BeforeLabel   string        `yaml:"before_label" validate:"required"`
	VersionPrefix string        `yaml:"version_prefix" validate:"required"`
}

type PatchWindow struct {
	Label string    `yaml:"label" validate:"required"`
	Start time.Time `yaml:"start" validate:"required"`
}

type StatsConfig struct {
	TopHalfCutoff int `yaml:"top_half_cutoff" validate:"gt=0"`
}

type PublishConfig struct {
	TursoURL          string `yaml:"turso_url"`
	TursoAuthToken    string `yaml:"-"`
	PostgresURL       string `yaml:"postgres_url"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns the built-in configuration without env overrides.
func Default() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse built-in defaults")
	}
	cfg.Paths = cfg.Paths.resolve()
	return cfg, nil
}

// Load layers the optional YAML file at path and the environment over the
// built-in defaults, then validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse built-in defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Paths = cfg.Paths.resolve()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	for i := 1; i < len(c.Patches.Windows); i++ {
		if !c.Patches.Windows[i].Start.After(c.Patches.Windows[i-1].Start) {
			return errors.Newf("invalid config: patch window %q must start after %q",
				c.Patches.Windows[i].Label, c.Patches.Windows[i-1].Label)
		}
	}
	return nil
}

// LoadDotEnv loads the first .env file found and returns its path.
func LoadDotEnv() string {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

func applyEnv(cfg *Config) error {
	cfg.Riot.APIKey = strings.TrimSpace(getEnv("RIOT_API_KEY", cfg.Riot.APIKey))
	cfg.Paths.DataDir = getEnv("TFT_DATA_DIR", cfg.Paths.DataDir)
	cfg.Publish.TursoURL = getEnv("TURSO_DATABASE_URL", cfg.Publish.TursoURL)
	cfg.Publish.TursoAuthToken = getEnv("TURSO_AUTH_TOKEN", cfg.Publish.TursoAuthToken)
	cfg.Publish.PostgresURL = getEnv("DATABASE_URL", cfg.Publish.PostgresURL)
	cfg.Publish.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", cfg.Publish.DiscordWebhookURL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	target, err := getEnvAsInt("TFT_TARGET_MATCHES", cfg.Crawl.TargetMatches)
	if err != nil {
		return errors.Wrap(err, "parse TFT_TARGET_MATCHES")
	}
	cfg.Crawl.TargetMatches = target
	return nil
}

func (p PathsConfig) resolve() PathsConfig {
	join := func(name string) string {
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(p.DataDir, name)
	}
	return PathsConfig{
		DataDir:   p.DataDir,
		RawDir:    join(p.RawDir),
		DB:        join(p.DB),
		SeenFile:  join(p.SeenFile),
		StateFile: join(p.StateFile),
		ExportDir: join(p.ExportDir),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}
