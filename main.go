package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/stevemurr/simple-todo-server/config"
	"github.com/stevemurr/simple-todo-server/handler"
	"github.com/stevemurr/simple-todo-server/logging"
	"github.com/stevemurr/simple-todo-server/repository"
	"github.com/stevemurr/simple-todo-server/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "todo",
		Short:        "A small todo list server with pluggable storage",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yml", "path to the YAML config file")

	root.AddCommand(
		a.serveCmd(),
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.toggleCmd(),
		a.updateCmd(),
		a.rmCmd(),
		a.clearCmd(),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)
	a.cfg, a.logger, a.logCloser = cfg, logger, closer
	return nil
}

// openRepository opens the configured store. The caller closes the store.
func (a *app) openRepository(ctx context.Context) (*repository.Repository, store.Store, error) {
	s, err := store.New(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store (backend=%s): %w", a.cfg.Store.Backend, err)
	}
	repo := repository.New(s,
		repository.WithDefaultLimit(a.cfg.Pagination.DefaultLimit),
		repository.WithMaxLimit(a.cfg.Pagination.MaxLimit),
		repository.WithLogger(a.logger.With("component", "repository")),
	)
	return repo, s, nil
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	repo, s, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	h := handler.New(repo, handler.Options{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         a.logger.With("component", "http"),
		Registry:       reg,
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.logger.Info("Simple Todo Server starting",
			"addr", srv.Addr,
			"store", a.cfg.Store.Backend,
			"data", a.cfg.Store.DataDir,
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
