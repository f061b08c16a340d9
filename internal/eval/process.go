package eval

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Process runs an engine binary and speaks UCI over its stdin/stdout.
// Output is not read until Listen is called.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	log    zerolog.Logger

	writeMu   sync.Mutex
	alive     atomic.Bool
	listening atomic.Bool
	waitDone  chan struct{}
	readDone  chan struct{}
	closeOnce sync.Once
}

// StartProcess launches path with args.
func StartProcess(path string, logger zerolog.Logger, args ...string) (*Process, error) {
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &OpError{Op: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &OpError{Op: "stdout pipe", Err: err}
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, &OpError{Op: "start process", Err: err}
	}

	p := &Process{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		log:      logger.With().Str("component", "engine-process").Logger(),
		waitDone: make(chan struct{}),
		readDone: make(chan struct{}),
	}
	p.alive.Store(true)

	go func() {
		err := cmd.Wait()
		p.alive.Store(false)
		if err != nil {
			p.log.Warn().Err(err).Msg("engine process exited")
		} else {
			p.log.Info().Msg("engine process exited")
		}
		close(p.waitDone)
	}()

	p.log.Info().Str("path", path).Int("pid", cmd.Process.Pid).Msg("engine process started")
	return p, nil
}

// Listen starts delivering output lines to handle from a single goroutine.
// It may be called once.
func (p *Process) Listen(handle func(line string)) {
	if !p.listening.CompareAndSwap(false, true) {
		return
	}
	go p.readLoop(handle)
}

func (p *Process) readLoop(handle func(string)) {
	defer close(p.readDone)

	scanner := bufio.NewScanner(p.stdout)
	buffer := make([]byte, 0, 64*1024)
	scanner.Buffer(buffer, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		p.log.Trace().Str("line", line).Msg("<")
		handle(line)
	}
	if err := scanner.Err(); err != nil && p.alive.Load() {
		p.log.Warn().Err(err).Msg("read engine output")
	}
}

// Send writes one command line.
func (p *Process) Send(command string) error {
	if !p.alive.Load() {
		return ErrEngineStopped
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.log.Trace().Str("cmd", command).Msg(">")
	if _, err := io.WriteString(p.stdin, command+"\n"); err != nil {
		p.alive.Store(false)
		return &OpError{Op: "write command", Err: err}
	}
	return nil
}

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	return p.alive.Load()
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.waitDone
}

// Close asks the engine to quit and kills it if ctx expires first.
func (p *Process) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var closeErr error
	p.closeOnce.Do(func() {
		_ = p.Send("quit")
		_ = p.stdin.Close()

		select {
		case <-ctx.Done():
			if p.cmd.Process != nil {
				if err := p.cmd.Process.Kill(); err != nil {
					closeErr = &OpError{Op: "kill process", Err: err}
				}
			}
			<-p.waitDone
		case <-p.waitDone:
		}
		p.alive.Store(false)
	})
	return closeErr
}
