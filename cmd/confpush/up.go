package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/lichlabs/confpush/internal/config"
	"github.com/lichlabs/confpush/internal/launch"
	"github.com/lichlabs/confpush/internal/ports"
	"github.com/lichlabs/confpush/internal/probe"
)

const terminateGrace = 5 * time.Second

// cmdUp starts the backend, waits until it answers, optionally starts the
// simulator, and then supervises both until a signal or backend exit.
func cmdUp() {
	cfg := loadConfig()
	port := mustPort(cfg)

	killed, err := ports.Free(port)
	if err != nil {
		fatal("freeing port %d: %v", port, err)
	}
	if len(killed) > 0 {
		fmt.Printf("killed stale listener(s) on port %d: %v\n", port, killed)
	}

	backendPath, err := findBinary("confpushd")
	if err != nil {
		fatal("%v", err)
	}

	webLog := filepath.Join(cfg.LogDir, "web.log")
	backend, err := launch.Start("confpushd", []string{
		backendPath,
		"--listen", cfg.Listen,
		"--state-file", cfg.StateFile,
	}, launch.Options{LogPath: webLog, PTY: ptyFlag})
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("started confpushd (pid %d), logging to %s\n", backend.PID(), webLog)

	var cleanupOnce sync.Once
	var sim *launch.Child
	cleanup := func() {
		cleanupOnce.Do(func() {
			if sim != nil {
				fmt.Println("stopping simulator...")
				sim.Terminate(terminateGrace)
			}
			fmt.Println("stopping confpushd...")
			backend.Terminate(terminateGrace)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// A signal must also interrupt a poll still in flight.
	pollCtx, cancelPoll := context.WithCancel(context.Background())
	defer cancelPoll()
	interrupted := make(chan struct{})
	go func() {
		<-sigCh
		cancelPoll()
		close(interrupted)
	}()

	attempts, err := probe.Wait(pollCtx, probe.Options{
		URL:      fmt.Sprintf("http://localhost:%d/api/defaults", port),
		Username: cfg.Username,
		Password: cfg.Password,
		Alive:    backend.Running,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println()
			cleanup()
			return
		}
		fmt.Fprintf(os.Stderr, "backend not ready: %v\n", err)
		dumpTail(webLog)
		cleanup()
		os.Exit(1)
	}
	fmt.Printf("backend ready after %d attempt(s)\n", attempts)

	if wantSimulator() {
		sim = startSimulator(cfg, port)
	}

	printSummary(cfg, port, backend, sim)

	select {
	case <-interrupted:
		fmt.Println()
		cleanup()
	case <-backend.Done():
		code, _ := backend.Wait()
		fmt.Fprintf(os.Stderr, "confpushd exited with code %d\n", code)
		dumpTail(webLog)
		cleanup()
		os.Exit(1)
	}
}

// wantSimulator applies --no-simulator and --prompt-simulator. The prompt
// only fires on a real terminal and defaults to no; without a terminal the
// simulator starts as usual.
func wantSimulator() bool {
	if noSimulatorFlag {
		return false
	}
	if !promptSimFlag {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	fmt.Print("start device simulator? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return affirmative(line)
}

// affirmative reports whether a prompt answer means yes. Anything but an
// explicit yes is a no.
func affirmative(line string) bool {
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// startSimulator launches confpush-sim and gives it a second to fall over.
// A dead simulator is reported but does not stop the backend.
func startSimulator(cfg config.Config, port int) *launch.Child {
	simPath, err := findBinary("confpush-sim")
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping simulator: %v\n", err)
		return nil
	}

	simLog := filepath.Join(cfg.LogDir, "simulator.log")
	sim, err := launch.Start("confpush-sim", []string{
		simPath,
		"--url", fmt.Sprintf("ws://localhost:%d/ws/app", port),
	}, launch.Options{LogPath: simLog, PTY: ptyFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping simulator: %v\n", err)
		return nil
	}

	select {
	case <-sim.Done():
		code, _ := sim.Wait()
		fmt.Fprintf(os.Stderr, "simulator exited immediately with code %d\n", code)
		dumpTail(simLog)
		return nil
	case <-time.After(time.Second):
	}

	fmt.Printf("started simulator (pid %d), logging to %s\n", sim.PID(), simLog)
	return sim
}

func printSummary(cfg config.Config, port int, backend, sim *launch.Child) {
	fmt.Println()
	fmt.Println("confpush is up:")
	fmt.Printf("  editor:    http://localhost:%d/  (user %s)\n", port, cfg.Username)
	fmt.Printf("  api:       http://localhost:%d/api/defaults\n", port)
	fmt.Printf("  websocket: ws://localhost:%d/ws/app\n", port)
	fmt.Printf("  backend:   pid %d\n", backend.PID())
	if sim != nil {
		fmt.Printf("  simulator: pid %d\n", sim.PID())
	}
	fmt.Println("press Ctrl-C to stop")
}

func dumpTail(path string) {
	lines, err := launch.Tail(path, 50)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", path, err)
		return
	}
	fmt.Fprintf(os.Stderr, "--- last %d lines of %s\n", len(lines), path)
	for _, line := range lines {
		fmt.Fprintln(os.Stderr, line)
	}
}
