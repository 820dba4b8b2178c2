package storage

import (
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options is the flat string configuration handed to a named backend, already
// merged over the backend's defaults. Typed getters report failures as
// *ConfigError tagged with the backend name.
type Options struct {
	Backend string
	Values  map[string]string
}

// NewOptions merges values over defaults for the named backend.
func NewOptions(backend string, defaults, values map[string]string) Options {
	return Options{Backend: backend, Values: MergeConfig(defaults, values)}
}

// String returns the value for key, or def when absent or empty.
func (o Options) String(key, def string) string {
	if v, ok := o.Values[key]; ok && v != "" {
		return v
	}
	return def
}

// Required returns the value for key, failing when it is absent or empty.
func (o Options) Required(key string) (string, error) {
	v := o.String(key, "")
	if v == "" {
		return "", NewConfigError(o.Backend, key, "cannot be empty")
	}
	return v, nil
}

// Path returns the value for key with ~ expanded.
func (o Options) Path(key, def string) string {
	return ExpandPath(o.String(key, def))
}

// Bool parses key as a boolean.
// Accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func (o Options) Bool(key string, def bool) (bool, error) {
	v := o.String(key, "")
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, NewConfigErrorWithValue(o.Backend, key, v, "must be a boolean (true/false, 1/0, yes/no)")
	}
}

// Int parses key as an integer.
func (o Options) Int(key string, def int) (int, error) {
	v := o.String(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Backend: o.Backend, Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Int64 parses key as a 64-bit integer.
func (o Options) Int64(key string, def int64) (int64, error) {
	v := o.String(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ConfigError{Backend: o.Backend, Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Duration parses key as a Go duration ("5s", "1m30s") or integer seconds.
func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	v := o.String(key, "")
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, NewConfigErrorWithValue(o.Backend, key, v, "must be a duration (e.g., '5s', '1m30s') or integer seconds")
}

// ExpandPath expands ~ to the user's home directory and cleans the path.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return filepath.Clean(path)
}

// MergeConfig merges src into dst, returning a new map.
// Values from src override values from dst.
func MergeConfig(dst, src map[string]string) map[string]string {
	result := make(map[string]string, len(dst)+len(src))
	maps.Copy(result, dst)
	maps.Copy(result, src)
	return result
}
