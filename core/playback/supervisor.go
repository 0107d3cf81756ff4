package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"taptunes/logger"
)

// defaultGraceTimeout bounds how long Stop waits for a terminated player
// before escalating to a hard kill.
const defaultGraceTimeout = 2 * time.Second

// ExitHandler is invoked when the player process exits on its own (never for
// supervisor-initiated kills). exitOK is true when the process reported a
// success exit code.
type ExitHandler func(exitOK bool)

// DurationHandler receives total-duration hints parsed from player output.
type DurationHandler func(seconds float64)

// Handle abstracts a running player process. The exec-backed implementation
// lives in exec.go; tests substitute their own.
type Handle interface {
	// Terminate asks the process to exit (SIGTERM).
	Terminate() error
	// Kill forcibly ends the process.
	Kill() error
	// Done is closed once the process has been waited on.
	Done() <-chan struct{}
	// ExitOK reports whether the process exited successfully. Valid only
	// after Done is closed.
	ExitOK() bool
	// WriteControl sends a command line on the process control channel.
	WriteControl(cmd string) error
}

// Launcher spawns a player process. onLine receives each line of the
// process's combined output.
type Launcher func(p Player, location string, offset float64, onLine func(string)) (Handle, error)

// process pairs a handle with its per-process bookkeeping.
type process struct {
	player Player
	handle Handle

	// intentional marks a supervisor-initiated kill. The exit path checks
	// it so deliberate terminations never look like natural completions,
	// even when the exit event arrives late.
	intentional atomic.Bool

	// reaped is closed once the exit has been fully handled, so a new
	// process never attaches its callbacks before the old one's exit
	// processing finished.
	reaped chan struct{}
}

// Supervisor owns at most one live player subprocess, selects the tool to
// run, and routes exit and duration events back to the engine.
type Supervisor struct {
	mu       sync.Mutex
	selector *Selector
	launch   Launcher
	current  *process

	grace time.Duration

	onExit     ExitHandler
	onDuration DurationHandler
}

// NewSupervisor creates a Supervisor using selector to pick players.
func NewSupervisor(selector *Selector) *Supervisor {
	return &Supervisor{
		selector: selector,
		launch:   launchExec,
		grace:    defaultGraceTimeout,
	}
}

// SetHandlers installs the engine callbacks. Must be called before Start.
func (s *Supervisor) SetHandlers(onExit ExitHandler, onDuration DurationHandler) {
	s.onExit = onExit
	s.onDuration = onDuration
}

// Start terminates any live process, then spawns a player for location
// beginning at offset seconds. It returns the selected player.
func (s *Supervisor) Start(location string, offset float64) (Player, error) {
	// The old process must be fully reaped first, otherwise its exit event
	// could be mis-attributed to the new subprocess.
	s.Stop()

	player, err := s.selector.Select()
	if err != nil {
		return Player{}, err
	}

	handle, err := s.launch(player, location, offset, s.handleLine)
	if err != nil {
		logger.Error("player spawn failed",
			logger.String("player", player.Name),
			logger.String("location", location),
			logger.ErrorField(err))
		return Player{}, err
	}

	proc := &process{
		player: player,
		handle: handle,
		reaped: make(chan struct{}),
	}

	s.mu.Lock()
	s.current = proc
	s.mu.Unlock()

	logger.Info("player started",
		logger.String("player", player.Name),
		logger.String("location", location),
		logger.Float64("offset", offset))

	go s.monitor(proc)
	return player, nil
}

// monitor waits for the process to exit and dispatches the exit event.
func (s *Supervisor) monitor(proc *process) {
	<-proc.handle.Done()

	s.mu.Lock()
	if s.current == proc {
		s.current = nil
	}
	s.mu.Unlock()

	intentional := proc.intentional.Load()
	exitOK := proc.handle.ExitOK()
	close(proc.reaped)

	if intentional {
		logger.Debug("player terminated intentionally",
			logger.String("player", proc.player.Name))
		return
	}

	logger.Info("player exited",
		logger.String("player", proc.player.Name),
		logger.Bool("exitOK", exitOK))
	if s.onExit != nil {
		s.onExit(exitOK)
	}
}

// Stop intentionally terminates the live process, if any, and blocks until
// its exit has been fully handled. Escalates to a hard kill after the grace
// timeout.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	proc := s.current
	s.mu.Unlock()
	if proc == nil {
		return
	}

	proc.intentional.Store(true)
	if err := proc.handle.Terminate(); err != nil {
		logger.Warn("terminate failed, killing", logger.ErrorField(err))
		_ = proc.handle.Kill()
	}

	select {
	case <-proc.reaped:
		return
	case <-time.After(s.grace):
	}

	logger.Warn("player ignored terminate, killing",
		logger.String("player", proc.player.Name))
	_ = proc.handle.Kill()

	select {
	case <-proc.reaped:
	case <-time.After(s.grace):
		logger.Error("player did not exit after kill",
			logger.String("player", proc.player.Name))
	}
}

// Alive reports whether a player process is currently live.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// SupportsLiveControl reports whether the live process, if any, accepts
// pause/resume commands without a restart.
func (s *Supervisor) SupportsLiveControl() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.player.SupportsLiveControl
}

// TogglePause sends the pause-toggle command to the live process. Only valid
// when SupportsLiveControl is true.
func (s *Supervisor) TogglePause() error {
	s.mu.Lock()
	proc := s.current
	s.mu.Unlock()
	if proc == nil || !proc.player.SupportsLiveControl {
		return ErrNoPlayerAvailable
	}
	return proc.handle.WriteControl(proc.player.PauseCommand())
}

// handleLine feeds player output through the duration parser.
func (s *Supervisor) handleLine(line string) {
	secs, ok := ParseDurationHint(line)
	if !ok {
		return
	}
	if s.onDuration != nil {
		s.onDuration(secs)
	}
}
