// CLAUDE:SUMMARY Service configuration (target date, strips, timers, copy) and YAML loader.
package valentine

import (
	"fmt"
	"os"
	"time"

	"github.com/hazyhaar/valentine/shield"
	"github.com/hazyhaar/valentine/valentine/internal/calendar"
	"github.com/hazyhaar/valentine/valentine/internal/reveal"
	"gopkg.in/yaml.v3"
)

// Config holds all valentine configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	Manifest  string `yaml:"manifest"`
	AssetsDir string `yaml:"assets_dir"`

	// Target is the date that unlocks the reveal. Month is zero-indexed.
	Target    calendar.Date       `yaml:"target"`
	LoveStart string              `yaml:"love_start"`
	Years     calendar.YearWindow `yaml:"year_window"`

	SlotsPerStrip int           `yaml:"slots_per_strip"`
	Strips        []StripConfig `yaml:"strips"`

	ShakeDuration time.Duration `yaml:"shake_duration"`
	PhraseEvery   time.Duration `yaml:"phrase_every"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	ManifestPoll  time.Duration `yaml:"manifest_poll"`

	EventsDB        string `yaml:"events_db"`
	EventsRetention int    `yaml:"events_retention_days"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Messages  MessagesConfig  `yaml:"messages"`
	Phrases   []string        `yaml:"phrases"`

	NoClicksMax int `yaml:"no_clicks_max"`
	RewardBoxes int `yaml:"reward_boxes"`
}

// StripConfig is one rotating photo strip of the reveal.
type StripConfig struct {
	ID     string        `yaml:"id"`
	Period time.Duration `yaml:"period"`
}

// RateLimitConfig is the per-IP limit on API calls. X-Forwarded-For is
// only believed when the peer is one of TrustedProxies (CIDRs or addresses).
type RateLimitConfig struct {
	RPS            float64  `yaml:"rps"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// MessagesConfig is the page copy. Subtitle may contain simple HTML; it is
// sanitised before rendering.
type MessagesConfig struct {
	Title       string   `yaml:"title"`
	Subtitle    string   `yaml:"subtitle"`
	No          []string `yaml:"no"`
	NoExhausted string   `yaml:"no_exhausted"`
}

func defaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Manifest == "" {
		c.Manifest = "photos.json"
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "assets/images"
	}
	if c.Target == (calendar.Date{}) {
		c.Target = calendar.Date{Year: 2025, Month: 2, Day: 24}
	}
	if c.LoveStart == "" {
		c.LoveStart = "2025-03-24T00:00:00"
	}
	if c.Years == (calendar.YearWindow{}) {
		c.Years = calendar.YearWindow{Min: 2020, Max: 2030}
	}
	if c.SlotsPerStrip <= 0 {
		c.SlotsPerStrip = 4
	}
	if len(c.Strips) == 0 {
		c.Strips = []StripConfig{
			{ID: "left", Period: 2800 * time.Millisecond},
			{ID: "right", Period: 3100 * time.Millisecond},
		}
	}
	for i := range c.Strips {
		if c.Strips[i].Period <= 0 {
			c.Strips[i].Period = 3 * time.Second
		}
	}
	if c.ShakeDuration <= 0 {
		c.ShakeDuration = 500 * time.Millisecond
	}
	if c.PhraseEvery <= 0 {
		c.PhraseEvery = 2 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 2 * time.Hour
	}
	if c.ManifestPoll <= 0 {
		c.ManifestPoll = 5 * time.Second
	}
	if c.EventsRetention <= 0 {
		c.EventsRetention = 90
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 30
	}
	if c.Messages.Title == "" {
		c.Messages.Title = "Will you be my Valentine?"
	}
	if len(c.Messages.No) == 0 {
		c.Messages.No = reveal.DefaultNoMessages
	}
	if c.Messages.NoExhausted == "" {
		c.Messages.NoExhausted = "You left me no choice"
	}
	if len(c.Phrases) == 0 {
		c.Phrases = reveal.DefaultPhrases
	}
	if c.NoClicksMax <= 0 {
		c.NoClicksMax = 8
	}
	if c.RewardBoxes <= 0 {
		c.RewardBoxes = 6
	}
}

// validate rejects settings defaults cannot repair.
func (c *Config) validate() error {
	if c.Target.Month < 0 || c.Target.Month > 11 {
		return fmt.Errorf("%w: target month %d (zero-indexed)", ErrInvalidConfig, c.Target.Month)
	}
	if c.Target.Day < 1 || c.Target.Day > calendar.DaysIn(c.Target.Year, c.Target.Month) {
		return fmt.Errorf("%w: target day %d", ErrInvalidConfig, c.Target.Day)
	}
	if c.Years.Max < c.Years.Min {
		return fmt.Errorf("%w: year window %d..%d", ErrInvalidConfig, c.Years.Min, c.Years.Max)
	}
	seen := make(map[string]bool, len(c.Strips))
	for _, s := range c.Strips {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("%w: strip id %q", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = true
	}
	if _, err := shield.ParseProxies(c.RateLimit.TrustedProxies); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.loveStart(); err != nil {
		return err
	}
	return nil
}

// loveStart parses LoveStart as RFC 3339, or as a local wall-clock time
// when no zone is given.
func (c *Config) loveStart() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, c.LoveStart); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", c.LoveStart, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: love_start %q", ErrInvalidConfig, c.LoveStart)
	}
	return t, nil
}

func (c *Config) stripIDs() []string {
	ids := make([]string, len(c.Strips))
	for i, s := range c.Strips {
		ids[i] = s.ID
	}
	return ids
}

// LoadConfigFile reads a YAML config file. Missing fields keep their zero
// value until New applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("valentine: parse %s: %w", path, err)
	}
	return cfg, nil
}
