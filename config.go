package kalam

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kalam-press/kalam/i18n"
)

// Config holds all configuration for a kalam site. It is loaded from YAML
// with ${ENV} references expanded.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Notion   NotionConfig   `yaml:"notion"`
	Auth     AuthConfig     `yaml:"auth"`
	Preview  PreviewConfig  `yaml:"preview"`
	Cache    CacheConfig    `yaml:"cache"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	I18n     I18nConfig     `yaml:"i18n"`
	Log      LogConfig      `yaml:"log"`
}

// SiteConfig describes the public site.
type SiteConfig struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Language    string `yaml:"language"`
	Email       string `yaml:"email"`
}

// HTTPConfig configures the listener and browser cookies.
type HTTPConfig struct {
	Addr          string `yaml:"addr"`
	CookieSecure  bool   `yaml:"cookie_secure"`
	SessionSecret string `yaml:"session_secret"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// NotionConfig holds the content source credentials.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
	APIURL     string `yaml:"api_url"`
	Version    string `yaml:"version"`
}

// AuthConfig configures the admin auth provider and session policy.
type AuthConfig struct {
	URL              string        `yaml:"url"`
	AnonKey          string        `yaml:"anon_key"`
	MaxSessionAge    time.Duration `yaml:"max_session_age"`
	RefreshThreshold time.Duration `yaml:"refresh_threshold"`
}

// PreviewConfig controls link preview fetching.
type PreviewConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	Concurrency int           `yaml:"concurrency"`
}

// CacheConfig controls the post list cache.
type CacheConfig struct {
	PostTTL time.Duration `yaml:"post_ttl"`
}

// UploadsConfig locates static files and uploaded images.
type UploadsConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// I18nConfig points at an optional copy catalog override file.
type I18nConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "Kalam"
	}
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:3000"
	}
	if c.Site.Language == "" {
		c.Site.Language = i18n.Telugu
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/kalam.db"
	}
	if c.Auth.MaxSessionAge == 0 {
		c.Auth.MaxSessionAge = 24 * time.Hour
	}
	if c.Auth.RefreshThreshold == 0 {
		c.Auth.RefreshThreshold = 30 * time.Minute
	}
	if c.Preview.Timeout == 0 {
		c.Preview.Timeout = 5 * time.Second
	}
	if c.Preview.Concurrency == 0 {
		c.Preview.Concurrency = 8
	}
	if c.Cache.PostTTL == 0 {
		c.Cache.PostTTL = 5 * time.Minute
	}
	if c.Uploads.StaticDir == "" {
		c.Uploads.StaticDir = "public"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Site,
		validation.Field(&c.Site.Name, validation.Required),
		validation.Field(&c.Site.URL, validation.Required, is.URL),
		validation.Field(&c.Site.Language, validation.Required, validation.In(i18n.Telugu, i18n.English)),
		validation.Field(&c.Site.Email, is.EmailFormat),
	); err != nil {
		return errors.Wrap(err, "site")
	}
	if err := validation.ValidateStruct(&c.HTTP,
		validation.Field(&c.HTTP.Addr, validation.Required),
		validation.Field(&c.HTTP.SessionSecret, validation.Required, validation.Length(16, 0)),
	); err != nil {
		return errors.Wrap(err, "http")
	}
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Path, validation.Required),
	); err != nil {
		return errors.Wrap(err, "database")
	}
	if err := validation.ValidateStruct(&c.Notion,
		validation.Field(&c.Notion.APIURL, is.URL),
	); err != nil {
		return errors.Wrap(err, "notion")
	}
	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.URL, is.URL),
		validation.Field(&c.Auth.MaxSessionAge, validation.Min(time.Minute)),
		validation.Field(&c.Auth.RefreshThreshold, validation.Min(time.Minute)),
	); err != nil {
		return errors.Wrap(err, "auth")
	}
	if c.Auth.RefreshThreshold >= c.Auth.MaxSessionAge {
		return errors.New("auth: refresh_threshold must be shorter than max_session_age")
	}
	if err := validation.ValidateStruct(&c.Preview,
		validation.Field(&c.Preview.Timeout, validation.Min(100*time.Millisecond)),
		validation.Field(&c.Preview.Concurrency, validation.Min(1), validation.Max(64)),
	); err != nil {
		return errors.Wrap(err, "preview")
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("trace", "debug", "info", "warn", "error")),
	); err != nil {
		return errors.Wrap(err, "log")
	}
	return nil
}

// LoadConfig reads path, expands environment references, applies defaults
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}
