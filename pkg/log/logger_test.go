package log

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestCtxFallsBackToGlobal(t *testing.T) {
	if Ctx(context.Background()) != L() {
		t.Fatal("context without a logger should yield the global logger")
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	child := New(Config{Level: "debug", Component: "test"})
	ctx := WithLogger(context.Background(), &child)
	if Ctx(ctx) != &child {
		t.Fatal("context logger not returned by Ctx")
	}
}

func TestAccessorsChainLevelMethods(t *testing.T) {
	// Level methods have pointer receivers; both accessors must return a
	// *zerolog.Logger so they chain directly off the call.
	L().Debug().Str("k", "v").Msg("chained off L")
	Ctx(context.Background()).Warn().Msg("chained off Ctx")

	var _ *zerolog.Logger = L()
	var _ *zerolog.Logger = Ctx(context.Background())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"WARN":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		" error ":  zerolog.ErrorLevel,
		"nonsense": zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
