// Package launch starts and supervises the backend and simulator as child
// processes: output redirected to per-child log files, each child in its
// own process group so teardown reaches grandchildren, optional PTY mode
// for children that buffer their output when not connected to a terminal.
package launch

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// Options configures how a child is started.
type Options struct {
	// LogPath receives the child's combined stdout+stderr. The file is
	// truncated on start, matching the original launcher.
	LogPath string

	// PTY runs the child under a pseudo-terminal. Output still lands in
	// LogPath; the PTY just convinces line-buffering runtimes to flush.
	PTY bool

	// Dir is the child's working directory (empty = inherit).
	Dir string

	// Env is appended to the inherited environment.
	Env []string
}

// Child is a supervised process.
type Child struct {
	Name string

	cmd      *exec.Cmd
	logPath  string
	logFile  *os.File
	ptmx     *os.File
	copyDone chan struct{}

	done chan struct{}

	mu       sync.Mutex
	exitCode int
	exitErr  error
}

// Start launches argv[0] with output redirected to opts.LogPath.
func Start(name string, argv []string, opts Options) (*Child, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("starting %s: empty command", name)
	}

	if err := os.MkdirAll(filepath.Dir(opts.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	logFile, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	c := &Child{
		Name:    name,
		cmd:     cmd,
		logPath: opts.LogPath,
		logFile: logFile,
		done:    make(chan struct{}),
	}

	if opts.PTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("starting %s under pty: %w", name, err)
		}
		c.ptmx = ptmx
		c.copyDone = make(chan struct{})
		go func() {
			// Drain until the child exits and the slave side closes.
			defer close(c.copyDone)
			io.Copy(logFile, ptmx)
		}()
	} else {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if err := cmd.Start(); err != nil {
			logFile.Close()
			return nil, fmt.Errorf("starting %s: %w", name, err)
		}
	}

	go c.reap()
	return c, nil
}

// reap waits for the process and records its exit.
func (c *Child) reap() {
	err := c.cmd.Wait()

	c.mu.Lock()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			c.exitCode = exitErr.ExitCode()
		} else {
			c.exitCode = 1
			c.exitErr = err
		}
	}
	c.mu.Unlock()

	if c.ptmx != nil {
		// Let the drain goroutine flush the last of the output before
		// the log file goes away.
		<-c.copyDone
		c.ptmx.Close()
	}
	c.logFile.Close()
	close(c.done)
}

// PID returns the child's process ID.
func (c *Child) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// LogPath returns the child's log file path.
func (c *Child) LogPath() string {
	return c.logPath
}

// Running reports whether the child has not exited yet.
func (c *Child) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits and returns its exit code.
func (c *Child) Wait() (int, error) {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, c.exitErr
}

// Done returns a channel closed when the child exits.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Terminate stops the child's process group: SIGTERM, then SIGKILL after
// the grace period. It is safe to call on an already-exited child.
func (c *Child) Terminate(grace time.Duration) {
	if !c.Running() {
		return
	}
	pid := c.PID()
	if pid <= 0 {
		return
	}

	// Both the Setpgid and the PTY (Setsid) paths make the child a group
	// leader, so the negative PID addresses the whole group.
	syscall.Kill(-pid, syscall.SIGTERM)

	select {
	case <-c.done:
		return
	case <-time.After(grace):
	}
	syscall.Kill(-pid, syscall.SIGKILL)
	<-c.done
}
