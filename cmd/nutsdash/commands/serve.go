package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nutsq/nutsdash/am"
	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/server"
	"github.com/nutsq/nutsdash/sym"
)

// ServeCmd runs the dashboard server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   sym.Short("serve"),
	Long: `Serve the dashboard HTTP API and push live view updates over WebSocket.

The refresh interval and allowed origins are reloaded when the active config
file changes.

Examples:
  nutsdash serve
  nutsdash serve --addr 0.0.0.0:8820
  nutsdash serve --api-url http://nuts.internal:8000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().String("addr", "", "Listen address (default: server.host:server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = s.cfg.ServerAddress()
	}

	srv := server.New(s.svc, server.Options{
		Addr:           addr,
		AllowedOrigins: s.cfg.GetServerAllowedOrigins(),
	}, logger.ComponentLogger("server"))

	if watcher := watchConfig(func(cfg *am.Config) error {
		s.svc.SetInterval(cfg.RefreshInterval())
		srv.SetAllowedOrigins(cfg.GetServerAllowedOrigins())
		return nil
	}); watcher != nil {
		defer watcher.Stop()
	}

	pterm.Info.Printf("nutsdash serving %s (backend %s, refresh every %s)\n",
		addr, s.client.BaseURL(), s.cfg.RefreshInterval())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		stopServer(srv)
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-cmd.Context().Done():
	case <-sigChan:
	}

	pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")
	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- stopServer(srv)
	}()

	select {
	case err := <-shutdownDone:
		if err != nil {
			return errors.Wrap(err, "shutdown error")
		}
		pterm.Success.Println("Server stopped cleanly")
		return nil
	case <-sigChan:
		pterm.Warning.Println("Force shutdown - exiting immediately")
		os.Exit(1)
		return nil
	}
}

func stopServer(srv *server.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}

// watchConfig starts a watcher on the active config file, if there is one,
// and registers onReload. Failures are logged; the server runs without reload.
func watchConfig(onReload am.ReloadCallback) *am.ConfigWatcher {
	path := am.ActiveConfigPath()
	if path == "" {
		return nil
	}

	watcher, err := am.NewConfigWatcher(path)
	if err != nil {
		logger.Warnw("Config reload disabled", "path", path, logger.FieldError, err)
		return nil
	}
	watcher.OnReload(onReload)
	am.SetGlobalWatcher(watcher)
	watcher.Start()

	logger.Infow("Watching config for changes", "path", path)
	return watcher
}
