package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/ploi/internal/api"
	"github.com/jbweber/homelab/ploi/internal/config"
	"github.com/jbweber/homelab/ploi/internal/notify"
)

const shutdownTimeout = 5 * time.Second

func (a *app) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the panel API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listen, err)
			}

			// cached list first, network list in the background
			refreshed := a.coord.Start(ctx)

			panel := api.NewAPI(a.coord, a.client.WithNotifier(notify.Discard), api.Options{
				SSHUser:  a.cfg.SSHUser,
				PanelURL: a.cfg.PanelURL,
				Notifier: notify.NewLogNotifier(a.logger),
				Logger:   a.logger,
			})
			srv := &http.Server{
				Handler:           api.NewRouter(panel),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Serve(ln)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Serving Ploi panel on http://%s\n", ln.Addr())

			select {
			case err := <-errCh:
				<-refreshed
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("shutdown", slog.String("error", err.Error()))
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			// the refresh writes to the store, which is closed after return
			<-refreshed
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", a.cfg.ListenAddr, "address to listen on ($"+config.EnvListen+")")
	return cmd
}
