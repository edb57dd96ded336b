package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" DEBUG ":  zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"inactive": zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q)=%v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("unknown level should not parse")
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("empty level should not override")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogBypass, "not-a-bool")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("level=%v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("timestamp override ignored")
	}
	if !cfg.NoColor {
		t.Fatalf("nocolor override ignored")
	}
	if cfg.Bypass {
		t.Fatalf("invalid bool should not enable bypass")
	}
}

func TestApplyBypassDiscardsOutput(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	apply(Config{Level: zerolog.DebugLevel, NoColor: true}, &buf)
	log.Info().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected output, got %q", buf.String())
	}

	buf.Reset()
	apply(Config{Level: zerolog.DebugLevel, Bypass: true}, &buf)
	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("bypass wrote %q", buf.String())
	}
}
