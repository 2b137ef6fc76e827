package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lichlabs/confpush/internal/config"
	"github.com/lichlabs/confpush/internal/deploy"
	"github.com/lichlabs/confpush/internal/ports"
	"github.com/lichlabs/confpush/internal/probe"
)

// cmdDeploy installs confpushd as a systemd service on the deploy port and
// waits until it answers.
func cmdDeploy() {
	cfg := loadConfig()
	if portFlag == 0 {
		cfg.Listen = fmt.Sprintf("0.0.0.0:%d", config.DeployPort)
	}
	port := mustPort(cfg)

	backendPath, err := findBinary("confpushd")
	if err != nil {
		fatal("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr, err := deploy.Connect(ctx, userFlag)
	if err != nil {
		fatal("%v", err)
	}
	defer mgr.Close()

	execStart := fmt.Sprintf("%s --listen %s --state-file %s", backendPath, cfg.Listen, cfg.StateFile)

	if transientFlag {
		err = mgr.StartTransient(ctx, cfg.UnitName, "confpush backend",
			[]string{backendPath, "--listen", cfg.Listen, "--state-file", cfg.StateFile}, nil)
		if err != nil {
			fatal("starting transient unit: %v", err)
		}
		fmt.Printf("started transient unit %s\n", cfg.UnitName)
	} else {
		unitPath, err := mgr.Install(ctx, deploy.UnitSpec{
			Name:        cfg.UnitName,
			Description: "confpush backend",
			ExecStart:   execStart,
			User:        userFlag,
		})
		if unitPath != "" {
			fmt.Printf("wrote %s\n", unitPath)
		}
		if err != nil {
			fatal("installing %s: %v", cfg.UnitName, err)
		}
		fmt.Printf("enabled and started %s\n", cfg.UnitName)
	}

	// The poll bounds itself by attempt count; don't cap it with the
	// D-Bus timeout.
	attempts, err := probe.Wait(context.Background(), probe.Options{
		URL:      fmt.Sprintf("http://localhost:%d/api/defaults", port),
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		fatal("service started but not ready: %v", err)
	}
	fmt.Printf("service answering on port %d after %d attempt(s)\n", port, attempts)
}

// cmdUndeploy stops and removes the systemd service.
func cmdUndeploy() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr, err := deploy.Connect(ctx, userFlag)
	if err != nil {
		fatal("%v", err)
	}
	defer mgr.Close()

	if err := mgr.Uninstall(ctx, cfg.UnitName); err != nil {
		fatal("removing %s: %v", cfg.UnitName, err)
	}
	fmt.Printf("removed %s\n", cfg.UnitName)
}

// cmdStatus reports who is listening on the dev port and whether the API
// answers.
func cmdStatus() {
	cfg := loadConfig()
	port := mustPort(cfg)

	pids, err := ports.Listeners(port)
	if err != nil {
		fatal("checking port %d: %v", port, err)
	}
	if len(pids) == 0 {
		fmt.Printf("port %d: nothing listening\n", port)
		return
	}
	fmt.Printf("port %d: pid(s) %v\n", port, pids)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = probe.Wait(ctx, probe.Options{
		URL:      fmt.Sprintf("http://localhost:%d/api/defaults", port),
		Username: cfg.Username,
		Password: cfg.Password,
		Attempts: 1,
	})
	if err != nil {
		fmt.Printf("api: not answering (%v)\n", err)
	} else {
		fmt.Println("api: ready")
	}

	// Unit state is informative only; a missing bus just means no
	// deployment here.
	mgr, err := deploy.Connect(ctx, userFlag)
	if err != nil {
		return
	}
	defer mgr.Close()
	st, err := mgr.Status(ctx, cfg.UnitName)
	if err != nil {
		return
	}
	if st.MainPID > 0 {
		fmt.Printf("unit %s: %s (%s, pid %d)\n", cfg.UnitName, st.ActiveState, st.SubState, st.MainPID)
	} else {
		fmt.Printf("unit %s: %s (%s)\n", cfg.UnitName, st.ActiveState, st.SubState)
	}
}
