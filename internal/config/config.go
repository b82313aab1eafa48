// Package config loads ApparelChat settings: baked-in defaults, an optional
// YAML file, then the APPAREL_API_URL environment variable.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ApparelChat/internal/session"
)

const (
	DefaultAPIURL        = "http://localhost:8000"
	DefaultLogDir        = "logs"
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultToastPeriod   = 45 * time.Second
	DefaultToastLifetime = 5 * time.Second

	// EnvAPIURL overrides the assistant service base URL
	EnvAPIURL = "APPAREL_API_URL"
)

// Config holds application configuration
type Config struct {
	APIURL      string        `yaml:"api_url"`
	Mode        session.Mode  `yaml:"mode"`
	Debug       bool          `yaml:"debug"`
	LogDir      string        `yaml:"log_dir"`
	JournalDSN  string        `yaml:"journal_dsn"` // empty keeps the journal in memory
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Plain       bool          `yaml:"plain"` // line-mode REPL even on a terminal

	Toasts  ToastConfig `yaml:"toasts"`
	Catalog Catalog     `yaml:"catalog"`
}

// ToastConfig controls the trend notification scheduler
type ToastConfig struct {
	Period   time.Duration `yaml:"period"`
	Lifetime time.Duration `yaml:"lifetime"`
}

// Catalog is static showcase content, never fetched from the service
type Catalog struct {
	Featured []FeaturedProduct `yaml:"featured"`
	Trends   []Trend           `yaml:"trends"`
}

// FeaturedProduct is one entry of the product ticker
type FeaturedProduct struct {
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	ImageURL string `yaml:"image_url"`
}

// Trend is one toast message
type Trend struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Default returns the baked-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path. An empty path yields the defaults.
// The environment override is applied in both cases.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, err
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
	return cfg, cfg.Validate()
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in unset values.
func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Mode == "" {
		c.Mode = session.ModeStandard
	} else if m, ok := session.ParseMode(string(c.Mode)); ok {
		c.Mode = m
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Toasts.Period == 0 {
		c.Toasts.Period = DefaultToastPeriod
	}
	if c.Toasts.Lifetime == 0 {
		c.Toasts.Lifetime = DefaultToastLifetime
	}
	if len(c.Catalog.Featured) == 0 {
		c.Catalog.Featured = defaultFeatured()
	}
	if len(c.Catalog.Trends) == 0 {
		c.Catalog.Trends = defaultTrends()
	}
}

// Validate checks that all fields are consistent.
func (c *Config) Validate() error {
	var errs []string
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		errs = append(errs, fmt.Sprintf("api_url must be an http(s) URL, got %q", c.APIURL))
	}
	if _, ok := session.ParseMode(string(c.Mode)); !ok {
		errs = append(errs, fmt.Sprintf("mode must be standard or vto, got %q", c.Mode))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, "http_timeout must not be negative")
	}
	if c.Toasts.Period < time.Second {
		errs = append(errs, "toasts.period must be at least 1s")
	}
	if c.Toasts.Lifetime <= 0 {
		errs = append(errs, "toasts.lifetime must be positive")
	}
	for i, p := range c.Catalog.Featured {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("catalog.featured[%d].name is required", i))
		}
	}
	for i, t := range c.Catalog.Trends {
		if t.Title == "" {
			errs = append(errs, fmt.Sprintf("catalog.trends[%d].title is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func defaultFeatured() []FeaturedProduct {
	return []FeaturedProduct{
		{Name: "Linen Summer Dress", Price: "LKR 6,490", ImageURL: "/product_images/linen_summer_dress.jpg"},
		{Name: "Classic Denim Jacket", Price: "LKR 8,950", ImageURL: "/product_images/classic_denim_jacket.jpg"},
		{Name: "Floral Maxi Skirt", Price: "LKR 4,750", ImageURL: "/product_images/floral_maxi_skirt.jpg"},
		{Name: "Oversized Cotton Tee", Price: "LKR 2,990", ImageURL: "/product_images/oversized_cotton_tee.jpg"},
		{Name: "Tailored Wide-Leg Trousers", Price: "LKR 7,200", ImageURL: "/product_images/tailored_wide_leg_trousers.jpg"},
	}
}

func defaultTrends() []Trend {
	return []Trend{
		{Title: "Trending now", Body: "Linen is back: breathable dresses are this week's top pick."},
		{Title: "Just restocked", Body: "The Classic Denim Jacket is available again in S to XL."},
		{Title: "Style tip", Body: "Pair a maxi skirt with an oversized tee for an easy weekend look."},
		{Title: "Try it on", Body: "Switch to try-on mode and attach a photo to see a dress on you."},
		{Title: "Cash on delivery", Body: "Order in chat and pay when your parcel arrives."},
	}
}
