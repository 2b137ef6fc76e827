// confpushd - profile distribution backend
//
// Serves the HTTP API and device WebSockets, persists the profile set to
// the state file, and rebroadcasts when that file changes on disk.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	flag "github.com/spf13/pflag"

	"github.com/lichlabs/confpush/internal/config"
	"github.com/lichlabs/confpush/internal/hub"
	"github.com/lichlabs/confpush/internal/server"
	"github.com/lichlabs/confpush/internal/store"
)

var (
	configFlag    string
	listenFlag    string
	stateFileFlag string
)

func main() {
	flag.StringVarP(&configFlag, "config", "c", "", "Path to YAML config file")
	flag.StringVar(&listenFlag, "listen", "", "Listen address (overrides config)")
	flag.StringVar(&stateFileFlag, "state-file", "", "Profile snapshot path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configFlag)
	if err != nil {
		fatal("loading config: %v", err)
	}
	if listenFlag != "" {
		cfg.Listen = listenFlag
	}
	if stateFileFlag != "" {
		cfg.StateFile = stateFileFlag
	}

	st, err := store.Open(cfg.StateFile)
	if err != nil {
		fatal("opening store: %v", err)
	}

	h := hub.New()
	srv := server.New(cfg, st, h)

	ln, err := server.GetListener(cfg.Listen)
	if err != nil {
		fatal("getting listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := st.Watch(ctx, srv.BroadcastSnapshot); err != nil {
			log.Printf("state file watch: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("confpushd listening on %s (state file %s)", ln.Addr(), cfg.StateFile)
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.Serve(ln); err != nil && err.Error() != "http: Server closed" {
		fatal("http server: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
