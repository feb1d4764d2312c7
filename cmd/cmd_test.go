package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command; the commands share global viper state so
// these tests are not parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVolumeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := run(t, "volume", "--settings", path)
	if err != nil {
		t.Fatalf("volume error = %v", err)
	}
	if !strings.Contains(out, "Master volume: 100%") {
		t.Errorf("default output = %q", out)
	}

	out, err = run(t, "volume", "250", "--settings", path)
	if err != nil {
		t.Fatalf("volume 250 error = %v", err)
	}
	if !strings.Contains(out, "Master volume: 200%") {
		t.Errorf("clamped output = %q", out)
	}

	out, err = run(t, "volume", "--settings", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Master volume: 200%") {
		t.Errorf("persisted output = %q", out)
	}

	if _, err := run(t, "volume", "loud", "--settings", path); err == nil {
		t.Error("volume loud succeeded")
	}
}

func TestMuteCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := run(t, "mute", "on", "--settings", path)
	if err != nil {
		t.Fatalf("mute on error = %v", err)
	}
	if !strings.Contains(out, "Master mute: on") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "mute", "--settings", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Master mute: on") {
		t.Errorf("persisted output = %q", out)
	}

	if _, err := run(t, "mute", "maybe", "--settings", path); err == nil {
		t.Error("mute maybe succeeded")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "audiomix version dev") {
		t.Errorf("output = %q", out)
	}
}

func TestSources(t *testing.T) {
	toneFreq, toneDuration = 0, 0
	if got := sources([]string{"a.wav", "b.mp3"}); len(got) != 2 || got[1].Path != "b.mp3" {
		t.Errorf("sources() = %+v", got)
	}

	toneFreq = 440
	defer func() { toneFreq = 0 }()
	got := sources(nil)
	if len(got) != 1 || got[0].Tone != 440 || got[0].Path != "" {
		t.Errorf("sources() with tone = %+v", got)
	}
}
