package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/ploi/internal/domain"
)

// serverAction builds a command running fn against one resolved server.
// The client prints the outcome; a failure only sets the exit status.
func (a *app) serverAction(use, short string, fn func(ctx context.Context, s domain.Server) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <server>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := a.resolveServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := fn(cmd.Context(), server); err != nil {
				return reported(err)
			}
			return nil
		},
	}
}

// siteAction builds a command running fn against one resolved site.
func (a *app) siteAction(use, short string, fn func(ctx context.Context, s domain.Site, serverID int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <server> <site>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server, err := a.resolveServer(ctx, args[0])
			if err != nil {
				return err
			}
			site, err := a.resolveSite(ctx, server, args[1])
			if err != nil {
				return err
			}
			if err := fn(ctx, site, server.ID); err != nil {
				return reported(err)
			}
			return nil
		},
	}
}

func (a *app) rebootCommand() *cobra.Command {
	return a.serverAction("reboot", "Reboot a server", func(ctx context.Context, s domain.Server) error {
		return a.client.RebootServer(ctx, s.ID)
	})
}

func (a *app) opcacheCommand() *cobra.Command {
	return a.serverAction("opcache", "Refresh the OPcache of a server", func(ctx context.Context, s domain.Server) error {
		return a.client.RefreshOpCache(ctx, s.ID)
	})
}

func (a *app) restartCommand() *cobra.Command {
	validArgs := make([]string, 0, len(domain.Services))
	for _, s := range domain.Services {
		validArgs = append(validArgs, s.Key)
	}

	return &cobra.Command{
		Use:       "restart <server> <mysql|nginx|supervisor>",
		Short:     "Restart a service on a server",
		Args:      cobra.ExactArgs(2),
		ValidArgs: validArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server, err := a.resolveServer(ctx, args[0])
			if err != nil {
				return err
			}

			service, ok := domain.LookupService(args[1])
			if !ok {
				// the client rejects it without a request
				service = domain.Service{Key: args[1], Label: args[1]}
			}
			if err := a.client.RestartService(ctx, server.ID, service); err != nil {
				return reported(err)
			}
			return nil
		},
	}
}

func (a *app) deployCommand() *cobra.Command {
	return a.siteAction("deploy", "Deploy a site", func(ctx context.Context, s domain.Site, serverID int64) error {
		return a.client.DeploySite(ctx, s, serverID)
	})
}

func (a *app) flushCacheCommand() *cobra.Command {
	return a.siteAction("flush-cache", "Flush the FastCGI cache of a site", func(ctx context.Context, s domain.Site, serverID int64) error {
		return a.client.FlushFastCGICache(ctx, s, serverID)
	})
}
