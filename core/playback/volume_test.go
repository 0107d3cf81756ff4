package playback

import (
	"errors"
	"testing"
)

func TestVolumeFallbackChain(t *testing.T) {
	var calls [][]string
	failFirst := 2
	v := &VolumeController{
		goos: "linux",
		run: func(name string, args ...string) error {
			calls = append(calls, append([]string{name}, args...))
			if len(calls) <= failFirst {
				return errors.New("Invalid card")
			}
			return nil
		},
	}

	if err := v.Set(40); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("tried %d commands, want 3", len(calls))
	}
	if calls[0][0] != "amixer" {
		t.Errorf("first command = %v, want amixer", calls[0])
	}
}

func TestVolumeAllCandidatesFail(t *testing.T) {
	v := &VolumeController{
		goos: "linux",
		run: func(name string, args ...string) error {
			return errors.New("Invalid card")
		},
	}
	if err := v.Set(40); err == nil {
		t.Fatal("Set = nil, want error when every mixer command fails")
	}
}

func TestVolumeFirstSuccessShortCircuits(t *testing.T) {
	var calls int
	v := &VolumeController{
		goos: "linux",
		run: func(name string, args ...string) error {
			calls++
			return nil
		},
	}
	if err := v.Set(75); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if calls != 1 {
		t.Errorf("ran %d commands, want 1", calls)
	}
}

func TestVolumeDarwin(t *testing.T) {
	var got []string
	v := &VolumeController{
		goos: "darwin",
		run: func(name string, args ...string) error {
			got = append([]string{name}, args...)
			return nil
		},
	}
	if err := v.Set(60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	want := "set volume output volume 60"
	if len(got) != 3 || got[0] != "osascript" || got[2] != want {
		t.Errorf("command = %v, want osascript -e %q", got, want)
	}
}

func TestVolumeUnsupportedPlatform(t *testing.T) {
	v := &VolumeController{goos: "plan9", run: func(string, ...string) error { return nil }}
	if err := v.Set(50); err == nil {
		t.Fatal("Set = nil, want error on unsupported platform")
	}
}
