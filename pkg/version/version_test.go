package version

import "testing"

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "1.2.0", "abc123"
	expected := "1.2.0, commit abc123, built unknown"
	if got := String(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
	if Info().Commit != "abc123" {
		t.Errorf("expected commit abc123, got %s", Info().Commit)
	}
}
