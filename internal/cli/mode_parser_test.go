package cli

import "testing"

func TestParseModeFlag(t *testing.T) {
	mode, rest, err := ParseMode([]string{"--mode=tracker-service", "--max-concurrent=200"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != ModeTracker {
		t.Fatalf("got mode %q", mode)
	}
	if len(rest) != 1 || rest[0] != "--max-concurrent=200" {
		t.Fatalf("unexpected remaining args: %v", rest)
	}
}

func TestParseModeSubcommandShorthand(t *testing.T) {
	cases := map[string]string{
		"tracker-service":    ModeTracker,
		"tracker":            ModeTracker,
		"t":                  ModeTracker,
		"fleetboard-service": ModeFleetboard,
		"board":              ModeFleetboard,
		"f":                  ModeFleetboard,
		"token":              ModeToken,
		"tok":                ModeToken,
	}

	for arg, want := range cases {
		mode, _, err := ParseMode([]string{arg})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", arg, err)
		}
		if mode != want {
			t.Fatalf("%s: got mode %q, want %q", arg, mode, want)
		}
	}
}

func TestParseModeMissing(t *testing.T) {
	if _, _, err := ParseMode([]string{"--max-concurrent=10"}); err == nil {
		t.Fatal("expected an error when no mode is given")
	}
}

func TestParseModeUnknownValueKept(t *testing.T) {
	mode, rest, err := ParseMode([]string{"frobnicate", "--mode=token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != ModeToken {
		t.Fatalf("got mode %q", mode)
	}
	if len(rest) != 1 || rest[0] != "frobnicate" {
		t.Fatalf("unexpected remaining args: %v", rest)
	}
}
