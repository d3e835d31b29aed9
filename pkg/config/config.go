// Package config loads qrnav settings from defaults, an optional YAML file,
// a .env file and QRNAV_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/presenter"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given and it exists
const DefaultFile = "qrnav.yaml"

type Config struct {
	Scan       ScanConfig       `yaml:"scan"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Navigation NavigationConfig `yaml:"navigation"`
	Session    SessionConfig    `yaml:"session"`
	Server     ServerConfig     `yaml:"server"`
	Search     SearchConfig     `yaml:"search"`
}

type ScanConfig struct {
	Trigger  string        `yaml:"trigger"`
	Interval time.Duration `yaml:"interval"`
	// Frames is a directory of still images replayed as the camera
	Frames string `yaml:"frames"`
	// Camera is a capture device id, used when Frames is empty
	Camera int `yaml:"camera"`
}

type DirectoryConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

type NavigationConfig struct {
	Mesh           string      `yaml:"mesh"`
	Toggle         string      `yaml:"toggle"`
	OverviewOffset models.Vec3 `yaml:"overview_offset"`
	AreaMask       uint32      `yaml:"area_mask"`
}

type SessionConfig struct {
	Start models.Vec3 `yaml:"start"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Path        string `yaml:"path"`
	Seed        string `yaml:"seed"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Trigger:  "DEST_MENU",
			Interval: 500 * time.Millisecond,
		},
		Directory: DirectoryConfig{
			BaseURL: "http://localhost:8080/unityAR/getTargetCube.php",
		},
		Navigation: NavigationConfig{
			Toggle:         presenter.ToggleOnReselect.String(),
			OverviewOffset: presenter.DefaultOverviewOffset,
			AreaMask:       math.MaxUint32,
		},
		Server: ServerConfig{
			Addr: ":8080",
			Path: "/unityAR/getTargetCube.php",
		},
	}
}

// Load builds the configuration. An empty path reads DefaultFile if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Scan.Trigger = firstNonEmpty(env("QRNAV_SCAN_TRIGGER"), c.Scan.Trigger)
	c.Scan.Frames = firstNonEmpty(env("QRNAV_SCAN_FRAMES"), c.Scan.Frames)
	c.Directory.BaseURL = firstNonEmpty(env("QRNAV_DIRECTORY_URL"), c.Directory.BaseURL)
	c.Navigation.Mesh = firstNonEmpty(env("QRNAV_NAV_MESH"), c.Navigation.Mesh)
	c.Navigation.Toggle = firstNonEmpty(env("QRNAV_NAV_TOGGLE"), c.Navigation.Toggle)
	c.Server.Addr = firstNonEmpty(env("QRNAV_SERVER_ADDR"), c.Server.Addr)
	c.Server.Path = firstNonEmpty(env("QRNAV_SERVER_PATH"), c.Server.Path)
	c.Server.Seed = firstNonEmpty(env("QRNAV_SERVER_SEED"), c.Server.Seed)
	c.Server.PostgresDSN = firstNonEmpty(env("QRNAV_SERVER_POSTGRES_DSN"), env("DATABASE_URL"), c.Server.PostgresDSN)

	var errs []error
	setDuration(&c.Scan.Interval, "QRNAV_SCAN_INTERVAL", &errs)
	setDuration(&c.Directory.Timeout, "QRNAV_DIRECTORY_TIMEOUT", &errs)
	setDuration(&c.Search.Debounce, "QRNAV_SEARCH_DEBOUNCE", &errs)
	setVec3(&c.Navigation.OverviewOffset, "QRNAV_NAV_OVERVIEW_OFFSET", &errs)
	setVec3(&c.Session.Start, "QRNAV_SESSION_START", &errs)

	if raw := env("QRNAV_SCAN_CAMERA"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("QRNAV_SCAN_CAMERA: %w", err))
		} else {
			c.Scan.Camera = v
		}
	}
	if raw := env("QRNAV_DIRECTORY_CACHE_SIZE"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("QRNAV_DIRECTORY_CACHE_SIZE: %w", err))
		} else {
			c.Directory.CacheSize = v
		}
	}
	if raw := env("QRNAV_NAV_AREA_MASK"); raw != "" {
		v, err := ParseAreaMask(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("QRNAV_NAV_AREA_MASK: %w", err))
		} else {
			c.Navigation.AreaMask = v
		}
	}
	return errors.Join(errs...)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.Trigger == "" {
		errs = append(errs, errors.New("scan.trigger must not be empty"))
	}
	if c.Scan.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scan.interval must be positive, got %s", c.Scan.Interval))
	}
	if c.Directory.Timeout < 0 {
		errs = append(errs, fmt.Errorf("directory.timeout must not be negative, got %s", c.Directory.Timeout))
	}
	if c.Directory.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("directory.cache_size must not be negative, got %d", c.Directory.CacheSize))
	}
	if c.Search.Debounce < 0 {
		errs = append(errs, fmt.Errorf("search.debounce must not be negative, got %s", c.Search.Debounce))
	}
	if _, err := presenter.ParsePolicy(c.Navigation.Toggle); err != nil {
		errs = append(errs, fmt.Errorf("navigation.toggle: %w", err))
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path must start with /, got %q", c.Server.Path))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed toggle policy
func (c *Config) Policy() presenter.Policy {
	p, _ := presenter.ParsePolicy(c.Navigation.Toggle)
	return p
}

// ParseAreaMask accepts decimal, 0x hex or 0b binary
func ParseAreaMask(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func setDuration(dst *time.Duration, key string, errs *[]error) {
	raw := env(key)
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func setVec3(dst *models.Vec3, key string, errs *[]error) {
	raw := env(key)
	if raw == "" {
		return
	}
	v, err := models.ParseVec3(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
