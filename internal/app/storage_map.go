package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/config"
	"github.com/MarkStefanovic/ketl-sub000/internal/storage"
)

func mapStorageConfig(cfg *config.Config, keep int) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}

	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: path, KeepResults: keep}, true, nil
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy, KeepResults: keep}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapAPIConfig(cfg *config.Config) apiConfig {
	a := cfg.API
	return apiConfig{
		Enabled:       a.Enabled,
		Addr:          a.ListenAddr(),
		Pprof:         a.Pprof,
		Token:         a.Token,
		AllowInsecure: a.AllowInsecure,
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  time.Minute,
		IdleTimeout:   2 * time.Minute,
	}
}
