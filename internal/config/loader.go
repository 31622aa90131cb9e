// Package config provides configuration loading for bullmq-otel.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// DefaultEnvPrefix is the environment prefix used by the CLI.
	DefaultEnvPrefix = "BULLMQ_OTEL_"
)

// Load reads YAML from path, then overrides with environment variables,
// and unmarshals the result into out using koanf struct tags.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BULLMQ_OTEL_BRIDGE_TRACER_NAME, ...)
//  2. YAML config file
//  3. Whatever out already holds (callers pass a struct pre-filled with defaults)
//
// A missing file is not an error. An empty path skips the file entirely.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore separates section from field:
//
//	BULLMQ_OTEL_BRIDGE_TRACER_NAME   -> bridge.tracer_name
//	BULLMQ_OTEL_NATS_URL             -> nats.url
//	BULLMQ_OTEL_TELEMETRY_PROTOCOL   -> telemetry.protocol
func Load(path, envPrefix string, out any) error {
	var content []byte
	if path != "" {
		data, err := readConfigFile(path)
		if err != nil {
			return err
		}
		content = data
	}
	return LoadBytes(content, envPrefix, out)
}

// LoadBytes is Load for YAML already in memory.
func LoadBytes(content []byte, envPrefix string, out any) error {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envPrefix != "" {
		if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper(envPrefix)), nil); err != nil {
			return fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// envKeyMapper maps PREFIX_SECTION_FIELD_NAME to section.field_name.
func envKeyMapper(prefix string) func(string) string {
	return func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, prefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}
}

// readConfigFile opens path once and validates it through the open
// descriptor, so the checked file is the file that is read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
// The file may hold exporter credentials, so group/world access is rejected.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm&0o077 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
