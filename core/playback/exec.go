package playback

import (
	"bufio"
	"bytes"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// execHandle is the real-subprocess implementation of Handle.
type execHandle struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser // nil for tools without live control

	done    chan struct{}
	waitErr error
}

// launchExec spawns the player binary with stdout and stderr attached to
// line scanners feeding onLine.
func launchExec(p Player, location string, offset float64, onLine func(string)) (Handle, error) {
	cmd := exec.Command(p.Path, p.Args(location, offset)...)

	var stdin io.WriteCloser
	if p.SupportsLiveControl {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdin = pipe
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &execHandle{
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		scanOutput(stdout, onLine)
	}()
	go func() {
		defer readers.Done()
		scanOutput(stderr, onLine)
	}()

	go func() {
		readers.Wait()
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

func (h *execHandle) Terminate() error {
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (h *execHandle) Kill() error {
	return h.cmd.Process.Kill()
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) ExitOK() bool {
	return h.waitErr == nil
}

func (h *execHandle) WriteControl(cmdLine string) error {
	if h.stdin == nil {
		return io.ErrClosedPipe
	}
	_, err := io.WriteString(h.stdin, cmdLine+"\n")
	return err
}

// scanOutput splits player output on both newlines and carriage returns;
// players redraw their progress timer with bare \r.
func scanOutput(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// Scanner errors (oversized or binary output) end the scan; the
	// process itself is unaffected.
}

// scanCRLines is a bufio.SplitFunc treating both \n and \r as terminators.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
