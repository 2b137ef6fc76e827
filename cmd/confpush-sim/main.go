// confpush-sim - simulated device client
//
// Connects to a confpushd WebSocket endpoint, validates every snapshot it
// receives, and keeps reconnecting until stopped.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/lichlabs/confpush/internal/dirs"
	"github.com/lichlabs/confpush/internal/simulator"
)

var (
	urlFlag       string
	stateFileFlag string
	onceFlag      bool
)

func main() {
	flag.StringVar(&urlFlag, "url", "ws://localhost:9091/ws/app", "WebSocket endpoint")
	flag.StringVar(&stateFileFlag, "state-file", filepath.Join(dirs.StateDir(), "simulator_config.json"), "Where to keep the received snapshot (empty = none)")
	flag.BoolVar(&onceFlag, "once", false, "Exit after the connection drops instead of reconnecting")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sim := simulator.New(simulator.Options{
		URL:       urlFlag,
		StateFile: stateFileFlag,
	})

	for {
		err := sim.Run(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			log.Printf("connection lost: %v", err)
		}
		if onceFlag {
			if err != nil {
				os.Exit(1)
			}
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
			continue
		}
		break
	}

	received, rejected := sim.Counts()
	fmt.Printf("simulator done: %d snapshot(s) received, %d rejected\n", received, rejected)
}
