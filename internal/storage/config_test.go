package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testOptions(values map[string]string) Options {
	return NewOptions("badger", map[string]string{"path": "~/.arc-ledger/state", "sync_writes": "false"}, values)
}

func TestOptionsString(t *testing.T) {
	o := testOptions(map[string]string{"path": "/data", "empty": ""})

	if got := o.String("path", "x"); got != "/data" {
		t.Errorf("String = %q, want /data", got)
	}
	if got := o.String("missing", "default"); got != "default" {
		t.Errorf("String missing = %q", got)
	}
	if got := o.String("empty", "default"); got != "default" {
		t.Errorf("String empty = %q", got)
	}
	if got := o.String("sync_writes", ""); got != "false" {
		t.Errorf("defaults not merged: %q", got)
	}
}

func TestOptionsRequired(t *testing.T) {
	o := testOptions(nil)
	if _, err := o.Required("bucket"); err == nil {
		t.Fatal("expected error for missing required key")
	} else {
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Backend != "badger" || ce.Field != "bucket" {
			t.Fatalf("unexpected error: %#v", err)
		}
	}
	if v, err := o.Required("path"); err != nil || v == "" {
		t.Fatalf("Required path = %q, %v", v, err)
	}
}

func TestOptionsBool(t *testing.T) {
	o := testOptions(map[string]string{"yes": "YES", "no": "0", "bad": "maybe"})

	if v, err := o.Bool("yes", false); err != nil || !v {
		t.Errorf("Bool yes: %v, %v", v, err)
	}
	if v, err := o.Bool("no", true); err != nil || v {
		t.Errorf("Bool no: %v, %v", v, err)
	}
	if v, err := o.Bool("missing", true); err != nil || !v {
		t.Errorf("Bool missing: %v, %v", v, err)
	}
	_, err := o.Bool("bad", false)
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Value != "maybe" {
		t.Errorf("Bool bad: %v", err)
	}
}

func TestOptionsNumbers(t *testing.T) {
	o := testOptions(map[string]string{"n": "42", "big": "9223372036854775807", "bad": "abc"})

	if v, err := o.Int("n", 0); err != nil || v != 42 {
		t.Errorf("Int = %d, %v", v, err)
	}
	if v, err := o.Int("missing", 9); err != nil || v != 9 {
		t.Errorf("Int missing = %d, %v", v, err)
	}
	if _, err := o.Int("bad", 0); err == nil {
		t.Error("Int bad: expected error")
	}
	if v, err := o.Int64("big", 0); err != nil || v != 9223372036854775807 {
		t.Errorf("Int64 = %d, %v", v, err)
	}
	_, err := o.Int64("bad", 0)
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Cause == nil {
		t.Errorf("Int64 bad should wrap parse error: %v", err)
	}
}

func TestOptionsDuration(t *testing.T) {
	o := testOptions(map[string]string{"d": "5s", "secs": "10", "bad": "soon"})

	if v, err := o.Duration("d", 0); err != nil || v != 5*time.Second {
		t.Errorf("Duration = %v, %v", v, err)
	}
	if v, err := o.Duration("secs", 0); err != nil || v != 10*time.Second {
		t.Errorf("Duration secs = %v, %v", v, err)
	}
	if _, err := o.Duration("bad", 0); err == nil {
		t.Error("Duration bad: expected error")
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("/absolute/path/"); got != "/absolute/path" {
		t.Errorf("ExpandPath absolute = %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath empty = %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	if got, want := ExpandPath("~/state"), filepath.Join(home, "state"); got != want {
		t.Errorf("ExpandPath ~ = %q, want %q", got, want)
	}
}

func TestMergeConfigDoesNotMutate(t *testing.T) {
	dst := map[string]string{"a": "1", "b": "2"}
	src := map[string]string{"b": "3"}
	got := MergeConfig(dst, src)
	if got["b"] != "3" || got["a"] != "1" {
		t.Errorf("MergeConfig = %v", got)
	}
	if dst["b"] != "2" {
		t.Error("MergeConfig modified dst")
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	tests := []struct {
		err  ConfigError
		want string
	}{
		{ConfigError{Backend: "sqlite", Message: "failed"}, "sqlite: failed"},
		{ConfigError{Backend: "sqlite", Field: "path", Message: "required"}, "sqlite: path: required"},
		{ConfigError{Backend: "sqlite", Field: "path", Value: "/tmp", Message: "invalid"}, `sqlite: path="/tmp": invalid`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
	cause := errors.New("underlying")
	if !errors.Is(NewConfigErrorWithCause("s3", "bucket", "bad", cause), cause) {
		t.Error("Unwrap: expected cause via errors.Is")
	}
}
