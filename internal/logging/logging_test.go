package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSelectWriterExplicitFormats(t *testing.T) {
	if _, ok := selectWriter("console").(zerolog.ConsoleWriter); !ok {
		t.Fatalf("console format must use the console writer")
	}
	if _, ok := selectWriter("json").(zerolog.ConsoleWriter); ok {
		t.Fatalf("json format must not use the console writer")
	}
}

func TestSelectWriterAutoFollowsTerminal(t *testing.T) {
	orig := isTerminalFn
	defer func() { isTerminalFn = orig }()

	isTerminalFn = func(fd int) bool { return true }
	if _, ok := selectWriter("auto").(zerolog.ConsoleWriter); !ok {
		t.Fatalf("auto on a terminal must pick the console writer")
	}

	isTerminalFn = func(fd int) bool { return false }
	if _, ok := selectWriter("auto").(zerolog.ConsoleWriter); ok {
		t.Fatalf("auto on a pipe must emit json")
	}
}

func TestInitSetsGlobalLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Init(Config{Format: "json", Level: "error", Component: "test"})
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Fatalf("init must apply the configured level, got %v", zerolog.GlobalLevel())
	}
}

func TestIsTerminalNilFile(t *testing.T) {
	if isTerminal(nil) {
		t.Fatalf("nil file is never a terminal")
	}
}
