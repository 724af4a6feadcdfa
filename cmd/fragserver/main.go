// Command fragserver runs the fragment tick engine behind an HTTP/WebSocket
// request layer, wiring config, persistence, engine, scheduler and
// transport together the way the teacher's server binary wires its config,
// world and listener.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamant-labs/fragment/engine"
	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/persistence"
	"github.com/adamant-labs/fragment/persistence/leveldbstore"
	"github.com/adamant-labs/fragment/persistence/memstore"
	"github.com/adamant-labs/fragment/scheduler"
	"github.com/adamant-labs/fragment/transport"
)

const shutdownTimeout = 5 * time.Second

func main() {
	root := &cobra.Command{Use: "fragserver"}
	root.AddCommand(serveCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
		inMemory   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the fragment tick engine and its HTTP/WebSocket front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, addr, dbPath, inMemory)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "fragserver.toml", "path to the TOML config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "fragment.db", "LevelDB data directory (ignored with --memory)")
	cmd.Flags().BoolVar(&inMemory, "memory", false, "use an in-memory, non-persistent store")
	return cmd
}

func run(configPath, addr, dbPath string, inMemory bool) error {
	conf, err := fragconf.Load(configPath)
	if err != nil {
		return fmt.Errorf("fragserver: %w", err)
	}
	log := conf.Logger()

	var store persistence.Port
	if inMemory {
		store = memstore.New()
	} else {
		s, err := leveldbstore.Open(dbPath, log)
		if err != nil {
			return fmt.Errorf("fragserver: open store: %w", err)
		}
		defer s.Close()
		store = s
	}

	eng := engine.New(conf, store)
	sched := scheduler.New(conf, eng)
	srv := transport.New(conf, eng, sched, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)

	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	log.Info("fragserver listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("fragserver: %w", err)
		}
		return nil
	}
}
