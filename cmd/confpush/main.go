// confpush - launcher and deployer for the confpush backend
//
// Usage:
//
//	confpush [up]                 Start backend (and simulator) in dev mode
//	confpush down                 Kill anything on the dev port
//	confpush status               Show listener and readiness state
//	confpush logs                 Show recent backend and simulator log lines
//	confpush deploy               Install confpushd as a systemd service
//	confpush undeploy             Remove the systemd service
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/lichlabs/confpush/internal/config"
	"github.com/lichlabs/confpush/internal/launch"
	"github.com/lichlabs/confpush/internal/ports"
)

var (
	configFlag      string
	portFlag        int
	noSimulatorFlag bool
	promptSimFlag   bool
	ptyFlag         bool
	userFlag        bool
	transientFlag   bool
)

func main() {
	flag.StringVarP(&configFlag, "config", "c", "", "Path to YAML config file")
	flag.IntVarP(&portFlag, "port", "p", 0, "Backend port (overrides config)")
	flag.BoolVar(&noSimulatorFlag, "no-simulator", false, "Start the backend only")
	flag.BoolVar(&promptSimFlag, "prompt-simulator", false, "Ask before starting the simulator")
	flag.BoolVar(&ptyFlag, "pty", false, "Run children under a PTY")
	flag.BoolVar(&userFlag, "user", false, "Deploy under the user systemd instance")
	flag.BoolVar(&transientFlag, "transient", false, "Deploy as a transient unit (no unit file)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `confpush - launcher and deployer for the confpush backend

Usage:
  confpush [up]       Start backend (and simulator) in dev mode
  confpush down       Kill anything on the dev port
  confpush status     Show listener and readiness state
  confpush logs       Show recent backend and simulator log lines
  confpush deploy     Install confpushd as a systemd service
  confpush undeploy   Remove the systemd service

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		cmdUp()
	case "down":
		cmdDown()
	case "status":
		cmdStatus()
	case "logs":
		cmdLogs(args[1:])
	case "deploy":
		cmdDeploy()
	case "undeploy":
		cmdUndeploy()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

// loadConfig applies the port flag over the loaded configuration.
func loadConfig() config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fatal("loading config: %v", err)
	}
	if portFlag != 0 {
		cfg.Listen = fmt.Sprintf("0.0.0.0:%d", portFlag)
	}
	return cfg
}

// findBinary locates a sibling binary next to our own executable, falling
// back to PATH lookup.
func findBinary(name string) (string, error) {
	exe, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(exe), name)
		if _, serr := os.Stat(sibling); serr == nil {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s binary not found next to %s or in PATH", name, os.Args[0])
	}
	return path, nil
}

// mustPort extracts the numeric listen port.
func mustPort(cfg config.Config) int {
	port, err := strconv.Atoi(cfg.Port())
	if err != nil {
		fatal("invalid listen address %q", cfg.Listen)
	}
	return port
}

func cmdDown() {
	cfg := loadConfig()
	port := mustPort(cfg)

	killed, err := ports.Free(port)
	if err != nil {
		fatal("freeing port %d: %v", port, err)
	}
	if len(killed) == 0 {
		fmt.Printf("nothing listening on port %d\n", port)
		return
	}
	fmt.Printf("killed %d process(es) on port %d: %v\n", len(killed), port, killed)
}

func cmdLogs(args []string) {
	cfg := loadConfig()

	names := []string{"web.log", "simulator.log"}
	if len(args) > 0 {
		switch args[0] {
		case "web":
			names = []string{"web.log"}
		case "sim":
			names = []string{"simulator.log"}
		default:
			fatal("unknown log: %s (want web or sim)", args[0])
		}
	}

	for _, name := range names {
		path := filepath.Join(cfg.LogDir, name)
		lines, err := launch.Tail(path, 50)
		if err != nil {
			fmt.Printf("--- %s: %v\n", name, err)
			continue
		}
		fmt.Printf("--- %s (last %d lines)\n", name, len(lines))
		for _, line := range lines {
			fmt.Println(line)
		}
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
