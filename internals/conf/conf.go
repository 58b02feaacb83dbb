package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Oudwins/shellrunner/internals/version"
	z "github.com/Oudwins/zog"
)

const FileName = "shellrunner.json"

type Config struct {
	Version string        `json:"-"`
	Server  ServerConfig  `json:"server"`
	Reports ReportsConfig `json:"reports"`
	Runner  RunnerConfig  `json:"runner"`
}

type ServerConfig struct {
	DataDir string `json:"data_dir" zog:"data_dir"`
}

// DBPath is where the task database lives.
func (c ServerConfig) DBPath() string {
	return filepath.Join(c.DataDir, "db", "shellrunner.db")
}

func (c ServerConfig) LogPath() string {
	return filepath.Join(c.DataDir, "log.txt")
}

type ReportsConfig struct {
	Dir string `json:"dir" zog:"dir"`
}

type RunnerConfig struct {
	Shell          string `json:"shell" zog:"shell"`
	CancelWaitMs   int    `json:"cancel_wait_ms" zog:"cancel_wait_ms"`
	CleanupGraceMs int    `json:"cleanup_grace_ms" zog:"cleanup_grace_ms"`
}

func (c RunnerConfig) CancelWait() time.Duration {
	return time.Duration(c.CancelWaitMs) * time.Millisecond
}

func (c RunnerConfig) CleanupGrace() time.Duration {
	return time.Duration(c.CleanupGraceMs) * time.Millisecond
}

var serverSchema = z.Struct(z.Shape{
	"DataDir": z.String().Default("~/.shellrunner").Transform(expandPathTransform),
})

var reportsSchema = z.Struct(z.Shape{
	"Dir": z.String().Optional().Transform(expandPathTransform),
})

var runnerSchema = z.Struct(z.Shape{
	"Shell":          z.String().Default("/bin/sh"),
	"CancelWaitMs":   z.Int().Default(500).GT(0, z.Message("cancel_wait_ms must be positive")),
	"CleanupGraceMs": z.Int().Default(2000).GT(0, z.Message("cleanup_grace_ms must be positive")),
})

var ConfigSchema = z.Struct(z.Shape{
	"Server":  serverSchema,
	"Reports": reportsSchema,
	"Runner":  runnerSchema,
})

var config *Config

// GetConfig returns the process-wide config, reading
// <data_dir>/shellrunner.json on first use.
func GetConfig() *Config {
	if config == nil {
		dataDir, err := expandPath("~/.shellrunner")
		if err != nil {
			log.Fatal("[Shellrunner] Failed to expand config data dir ", err)
		}
		parsed, err := Load(filepath.Join(dataDir, FileName))
		if err != nil {
			log.Fatal("[Shellrunner] Failed to load config ", err)
		}
		config = parsed
	}
	return config
}

// Load parses the config file at path. A missing or empty file yields the
// defaults.
func Load(path string) (*Config, error) {
	payload := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	case strings.TrimSpace(string(data)) != "":
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	parsed := &Config{}
	if errs := ConfigSchema.Parse(payload, parsed); errs != nil {
		return nil, fmt.Errorf("invalid config:\n%s", z.Issues.Prettify(errs))
	}
	parsed.Server.DataDir = filepath.Clean(parsed.Server.DataDir)
	if parsed.Reports.Dir == "" {
		parsed.Reports.Dir = filepath.Join(parsed.Server.DataDir, "reports")
	}
	parsed.Version = version.Version()
	return parsed, nil
}

func expandPathTransform(ptr *string, c z.Ctx) error {
	expanded, err := expandPath(*ptr)
	*ptr = expanded
	return err
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
