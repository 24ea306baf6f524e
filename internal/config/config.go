package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SubscriptionConfig binds an ICS feed to an itinerary. Events from the feed
// are imported as plain one-off events on every refresh.
type SubscriptionConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ItineraryID is the itinerary that receives the imported events.
	ItineraryID string `yaml:"itinerary_id" json:"itinerary_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CalendarConfig holds the grid geometry shared by the web page, the TUI and
// the gesture controller.
type CalendarConfig struct {
	// SlotMinutes is the duration of one grid cell (60 = hour slots).
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes"`
	// SlotHeightPx is the rendered height of one hour.
	SlotHeightPx float64 `yaml:"slot_height_px" json:"slot_height_px"`
	// SnapMinutes is the rounding step used while dragging events.
	SnapMinutes int `yaml:"snap_minutes" json:"snap_minutes"`
	// MinEventMinutes is the shortest event a gesture may produce.
	MinEventMinutes int `yaml:"min_event_minutes" json:"min_event_minutes"`
	// ComposerGutterPx keeps the floating composer away from the grid edges.
	ComposerGutterPx float64 `yaml:"composer_gutter_px" json:"composer_gutter_px"`
}

// SnapshotConfig controls headless Chromium captures of the calendar page.
type SnapshotConfig struct {
	Width      int `yaml:"width" json:"width"`
	Height     int `yaml:"height" json:"height"`
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// DatabasePath is the SQLite file holding itineraries and events.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RedisURL, if set, enables cross-process change notifications
	// (e.g. "redis://localhost:6379/0").
	RedisURL string `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic subscription refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ICSCacheDir stores fetched feeds and their HTTP cache metadata.
	ICSCacheDir string `yaml:"ics_cache_dir" json:"ics_cache_dir"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// Subscriptions is the list of ICS feeds imported into itineraries.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultDatabasePath = "./var/tripcal.db"
	defaultRefreshCron  = "*/15 * * * *"
	defaultICSCacheDir  = "./var/ics-cache"
)

func defaultCalendar() CalendarConfig {
	return CalendarConfig{
		SlotMinutes:      60,
		SlotHeightPx:     48,
		SnapMinutes:      30,
		MinEventMinutes:  30,
		ComposerGutterPx: 12,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		DatabasePath:  defaultDatabasePath,
		LogLevel:      "info",
		CORSOrigins:   []string{"*"},
		RefreshCron:   defaultRefreshCron,
		ICSCacheDir:   defaultICSCacheDir,
		Calendar:      defaultCalendar(),
		Snapshot:      SnapshotConfig{Width: 1280, Height: 960, TimeoutSec: 30},
		Subscriptions: []SubscriptionConfig{},
		BasicAuth:     nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = "info"
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.ICSCacheDir == "" {
		c.ICSCacheDir = defaultICSCacheDir
	}

	def := defaultCalendar()
	// Slots must divide an hour evenly so that hour labels line up.
	switch c.Calendar.SlotMinutes {
	case 15, 30, 60:
	default:
		c.Calendar.SlotMinutes = def.SlotMinutes
	}
	if c.Calendar.SlotHeightPx <= 0 {
		c.Calendar.SlotHeightPx = def.SlotHeightPx
	}
	if c.Calendar.SnapMinutes <= 0 {
		c.Calendar.SnapMinutes = def.SnapMinutes
	}
	if c.Calendar.MinEventMinutes <= 0 {
		c.Calendar.MinEventMinutes = def.MinEventMinutes
	}
	if c.Calendar.ComposerGutterPx < 0 {
		c.Calendar.ComposerGutterPx = def.ComposerGutterPx
	}

	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1280
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 960
	}
	if c.Snapshot.TimeoutSec <= 0 {
		c.Snapshot.TimeoutSec = 30
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tripcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// SubscriptionsFor returns the subscriptions bound to one itinerary.
func (c *Config) SubscriptionsFor(itineraryID string) []SubscriptionConfig {
	out := make([]SubscriptionConfig, 0)
	for _, s := range c.Subscriptions {
		if s.ItineraryID == itineraryID {
			out = append(out, s)
		}
	}
	return out
}
