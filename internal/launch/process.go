package launch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/nickheyer/launcherd/pkg/logger"
)

// maxLogLineBuffer matches the teacher's 1MB scanner buffer for
// long-running log lines (internal/api/log_streamer.go).
const maxLogLineBuffer = 1024 * 1024

// Process supervises one launched JVM child, capturing its stdout/stderr
// into a shared GameLog, per spec.md §4.6's "Process supervision" rule.
type Process struct {
	cmd *exec.Cmd
	Log *GameLog

	mu   sync.Mutex
	done chan struct{}
	err  error
}

// Spawn starts javaBin with jvmArgs, mainClass, and gameArgs in dir,
// streaming stdout/stderr into a new GameLog. The context governs the
// child's lifetime: cancelling ctx kills the process.
func Spawn(ctx context.Context, javaBin, dir string, jvmArgs []string, mainClass string, gameArgs []string) (*Process, error) {
	argv := append(append([]string{}, jvmArgs...), mainClass)
	argv = append(argv, gameArgs...)

	cmd := exec.CommandContext(ctx, javaBin, argv...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stderr: %w", err)
	}

	p := &Process{cmd: cmd, Log: NewGameLog(), done: make(chan struct{})}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start java process: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go p.pump(&wg, stdout, StdOut)
	go p.pump(&wg, stderr, StdErr)

	go func() {
		wg.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

func (p *Process) pump(wg *sync.WaitGroup, r io.Reader, typ EntryType) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineBuffer)

	for scanner.Scan() {
		p.mu.Lock()
		p.Log.Push(typ, scanner.Text()+"\n")
		p.mu.Unlock()
	}
}

// Wait blocks until the child exits, returning its exit error if any.
func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done reports whether the child has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Kill terminates the child process immediately, per spec.md §5's
// "dismissing a running prepare task... leaves no running child process"
// cancellation guarantee.
func (p *Process) Kill(log *logger.Logger) {
	if p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil && log != nil {
		log.Warn("kill java process: %v", err)
	}
}

// Pid returns the child process id, or 0 if not yet started.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
