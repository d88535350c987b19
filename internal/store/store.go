// Package store persists the device configuration and the request header
// pool as JSON files in the device data directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/metar-display/internal/domain"
)

const (
	// ConfigFile holds the provisioned network credentials and station.
	ConfigFile = "config.json"
	// HeadersFile holds the pool of request header sets.
	HeadersFile = "REQUEST_HEADERS.json"
)

// FileStore reads and writes the device's persisted files.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

// configFile mirrors the on-disk layout. Pointer fields distinguish a
// missing key from an empty value.
type configFile struct {
	SSID      *string `json:"WIFI_SSID,omitempty"`
	Password  *string `json:"WIFI_PASSWORD,omitempty"`
	StationID *string `json:"AIRPORT_CODE,omitempty"`
}

// LoadConfig returns the saved configuration with missing keys filled from
// defaults. A missing or malformed file yields the defaults without error;
// only a file that exists but cannot be read is reported.
func (s *FileStore) LoadConfig() (domain.DeviceConfig, error) {
	cfg := domain.DefaultDeviceConfig()

	data, err := os.ReadFile(s.path(ConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no saved config, using defaults", "path", s.path(ConfigFile))
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var raw configFile
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("malformed config, using defaults", "path", s.path(ConfigFile), "error", err)
		return cfg, nil
	}

	if raw.SSID != nil {
		cfg.SSID = *raw.SSID
	}
	if raw.Password != nil {
		cfg.Password = *raw.Password
	}
	if raw.StationID != nil {
		cfg.StationID = *raw.StationID
	}
	return cfg, nil
}

// SaveConfig writes cfg, replacing any previous file atomically.
func (s *FileStore) SaveConfig(cfg domain.DeviceConfig) error {
	data, err := json.Marshal(configFile{
		SSID:      &cfg.SSID,
		Password:  &cfg.Password,
		StationID: &cfg.StationID,
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return s.writeFile(ConfigFile, data)
}

// LoadHeaders returns the request header pool. A missing, empty or malformed
// file yields the built-in default pool.
func (s *FileStore) LoadHeaders() []domain.HeaderSet {
	data, err := os.ReadFile(s.path(HeadersFile))
	if err != nil {
		s.logger.Debug("header pool unavailable, using default", "path", s.path(HeadersFile), "error", err)
		return domain.DefaultHeaderPool()
	}

	var pool []domain.HeaderSet
	if err := json.Unmarshal(data, &pool); err != nil {
		s.logger.Warn("malformed header pool, using default", "path", s.path(HeadersFile), "error", err)
		return domain.DefaultHeaderPool()
	}
	if len(pool) == 0 {
		s.logger.Warn("empty header pool, using default", "path", s.path(HeadersFile))
		return domain.DefaultHeaderPool()
	}
	return pool
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
