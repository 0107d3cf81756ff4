package playback

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
)

// mpg123 cannot seek by time, only by MPEG frame count. A typical 44.1kHz
// MP3 carries 1152 samples per frame, which works out to roughly 38.28
// frames per second. This is only approximate for VBR or non-44.1kHz
// sources; the resulting resume position can be off by a few frames.
const mpg123FramesPerSecond = 38.28

// Player describes a selected external audio player: which binary to run,
// how to build its argument vector, and whether it exposes a control channel
// for in-process pause/resume.
type Player struct {
	Name string
	Path string // resolved executable path

	// SupportsLiveControl is true when the tool accepts pause/resume
	// commands on stdin while running. Tools without it get pause emulated
	// by killing the process and restarting from an offset.
	SupportsLiveControl bool

	// pauseToggle is the stdin command that toggles pause, for tools with
	// live control.
	pauseToggle string

	buildArgs func(location string, offset float64) []string
}

// Args builds the argument vector for playing location starting at offset
// seconds.
func (p Player) Args(location string, offset float64) []string {
	return p.buildArgs(location, offset)
}

// PauseCommand returns the stdin command toggling pause, empty when the tool
// has no live control channel.
func (p Player) PauseCommand() string {
	return p.pauseToggle
}

// Selector probes the host for an available player binary. The executable
// lookup is repeated on every Select call; the probe is cheap next to
// spawning the player, so nothing is cached.
type Selector struct {
	goos     string
	override string
	lookPath func(file string) (string, error)
}

// NewSelector creates a Selector for the current platform. A non-empty
// override restricts selection to that one tool name.
func NewSelector(override string) *Selector {
	return &Selector{
		goos:     runtime.GOOS,
		override: override,
		lookPath: exec.LookPath,
	}
}

// candidates returns the platform's players in priority order.
func (s *Selector) candidates() []Player {
	switch s.goos {
	case "linux":
		// mpg123 starts fastest and can frame-seek; mplayer adds a slave
		// control channel for real pause/resume; ffplay is the generic
		// fallback.
		return []Player{mpg123Player(), mplayerPlayer(), ffplayPlayer()}
	case "darwin":
		return []Player{afplayPlayer()}
	case "windows":
		return []Player{ffplayPlayer()}
	default:
		return []Player{ffplayPlayer()}
	}
}

// Select probes the candidate list and returns the first available player.
func (s *Selector) Select() (Player, error) {
	for _, p := range s.candidates() {
		if s.override != "" && p.Name != s.override {
			continue
		}
		path, err := s.lookPath(p.Name)
		if err != nil {
			continue
		}
		p.Path = path
		return p, nil
	}
	return Player{}, fmt.Errorf("%w (platform %s)", ErrNoPlayerAvailable, s.goos)
}

func mpg123Player() Player {
	return Player{
		Name: "mpg123",
		buildArgs: func(location string, offset float64) []string {
			args := []string{"-q"}
			if offset > 0 {
				frames := int(offset * mpg123FramesPerSecond)
				args = append(args, "-k", strconv.Itoa(frames))
			}
			return append(args, location)
		},
	}
}

func mplayerPlayer() Player {
	return Player{
		Name:                "mplayer",
		SupportsLiveControl: true,
		pauseToggle:         "pause",
		buildArgs: func(location string, offset float64) []string {
			args := []string{"-slave", "-quiet"}
			if offset > 0 {
				args = append(args, "-ss", strconv.FormatFloat(offset, 'f', 2, 64))
			}
			return append(args, location)
		},
	}
}

func ffplayPlayer() Player {
	return Player{
		Name: "ffplay",
		buildArgs: func(location string, offset float64) []string {
			args := []string{"-nodisp", "-autoexit", "-loglevel", "info"}
			if offset > 0 {
				args = append(args, "-ss", strconv.FormatFloat(offset, 'f', 2, 64))
			}
			return append(args, location)
		},
	}
}

func afplayPlayer() Player {
	return Player{
		Name: "afplay",
		// afplay has no start-offset option; resume always restarts the
		// track from the beginning.
		buildArgs: func(location string, offset float64) []string {
			return []string{location}
		},
	}
}
