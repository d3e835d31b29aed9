package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/presenter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qrnav.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "DEST_MENU", cfg.Scan.Trigger)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.Interval)
	assert.Equal(t, uint32(math.MaxUint32), cfg.Navigation.AreaMask)
	assert.Equal(t, presenter.ToggleOnReselect, cfg.Policy())
	assert.Zero(t, cfg.Directory.Timeout)
	assert.Zero(t, cfg.Directory.CacheSize)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
scan:
  trigger: LOBBY_MENU
  interval: 250ms
directory:
  base_url: https://nav.example.com/unityAR/getTargetCube.php
  timeout: 3s
  cache_size: 32
navigation:
  toggle: always
  overview_offset: {x: 0, y: 5, z: -5}
session:
  start: {x: 1, y: 0, z: 1}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "LOBBY_MENU", cfg.Scan.Trigger)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.Interval)
	assert.Equal(t, 3*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, 32, cfg.Directory.CacheSize)
	assert.Equal(t, presenter.ToggleAlways, cfg.Policy())
	assert.Equal(t, models.Vec3{Y: 5, Z: -5}, cfg.Navigation.OverviewOffset)
	assert.Equal(t, models.Vec3{X: 1, Z: 1}, cfg.Session.Start)
	// untouched keys keep their defaults
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "scan:\n  trigger: FROM_FILE\n")
	t.Setenv("QRNAV_SCAN_TRIGGER", "FROM_ENV")
	t.Setenv("QRNAV_SEARCH_DEBOUNCE", "150ms")
	t.Setenv("QRNAV_SESSION_START", "2, 0, -3")
	t.Setenv("QRNAV_NAV_AREA_MASK", "0x3")
	t.Setenv("QRNAV_DIRECTORY_CACHE_SIZE", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM_ENV", cfg.Scan.Trigger)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, models.Vec3{X: 2, Z: -3}, cfg.Session.Start)
	assert.Equal(t, uint32(3), cfg.Navigation.AreaMask)
	assert.Equal(t, 8, cfg.Directory.CacheSize)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"bad yaml", "scan: [", nil},
		{"zero interval", "scan:\n  interval: 0s\n", nil},
		{"unknown toggle", "navigation:\n  toggle: sometimes\n", nil},
		{"relative server path", "server:\n  path: query.php\n", nil},
		{"bad env duration", "", map[string]string{"QRNAV_SCAN_INTERVAL": "soon"}},
		{"bad env vector", "", map[string]string{"QRNAV_SESSION_START": "1,2"}},
		{"bad env mask", "", map[string]string{"QRNAV_NAV_AREA_MASK": "all"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseAreaMask(t *testing.T) {
	for in, want := range map[string]uint32{"5": 5, "0x10": 16, "0b11": 3, "4294967295": math.MaxUint32} {
		got, err := ParseAreaMask(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAreaMask("4294967296")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// no .env and no qrnav.yaml is fine
	_, err = Load("")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o644))
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env")
}
