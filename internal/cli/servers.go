package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/ploi/internal/coordinator"
	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/sshclient"
)

func (a *app) serversCommand() *cobra.Command {
	var ipOnly bool

	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.coord.Hydrate(ctx)
			refreshed := a.coord.Refresh(ctx)

			servers := a.coord.Servers()
			if !refreshed {
				if len(servers) == 0 {
					return reported(fmt.Errorf("no servers loaded"))
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "showing cached servers")
			}

			if ipOnly {
				printServerIPs(cmd.OutOrStdout(), servers)
				return nil
			}
			printServers(cmd.OutOrStdout(), servers)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ipOnly, "ip", false, "print only names and IP addresses")
	return cmd
}

func (a *app) sitesCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "sites <server>",
		Short: "List the sites of a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server, err := a.resolveServer(ctx, args[0])
			if err != nil {
				return err
			}

			if refresh {
				if err := a.store.Delete(ctx, coordinator.SitesKey(server.ID)); err != nil {
					return err
				}
				a.coord.Hydrate(ctx)
			}

			sites, cached := a.coord.CachedSites(server.ID)
			if !cached {
				if !a.coord.PrefetchSites(ctx, server.ID) {
					return reported(fmt.Errorf("no sites loaded for %s", server.Name))
				}
				// pick up the entry the prefetch just wrote
				a.coord.Hydrate(ctx)
				sites, _ = a.coord.CachedSites(server.ID)
			}

			printSites(cmd.OutOrStdout(), sites)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached site list and fetch it again")
	return cmd
}

func (a *app) siteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "site <server> <site>",
		Short: "Show the details of a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server, err := a.resolveServer(ctx, args[0])
			if err != nil {
				return err
			}
			ref, err := a.resolveSite(ctx, server, args[1])
			if err != nil {
				return err
			}

			site, err := a.client.GetSite(ctx, server.ID, ref.ID)
			if err != nil {
				return reported(err)
			}
			printSite(cmd.OutOrStdout(), site)
			return nil
		},
	}
}

func (a *app) sshCommand() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "ssh <server>",
		Short: "Open an SSH session on a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server, err := a.resolveServer(ctx, args[0])
			if err != nil {
				return err
			}

			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), server.SSHURL(a.cfg.SSHUser))
				return nil
			}

			target := sshclient.TargetFor(server, a.cfg.SSHUser)
			a.logger.Debug("opening ssh session", "address", target.Address(), "user", target.User)
			return a.connect(ctx, target, sshclient.Options{
				KeyPath:        a.cfg.SSHKey(),
				KnownHostsPath: a.cfg.KnownHostsPath(),
			})
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the ssh:// URL instead of connecting")
	return cmd
}

func (a *app) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <server>",
		Short: "Print the ploi.io panel URL of a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := a.resolveServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), server.PanelURL(a.cfg.PanelURL))
			return nil
		},
	}
}

func printServers(out io.Writer, servers []domain.Server) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tIP ADDRESS\tPHP\tSITES\tSTATUS")
	for _, s := range servers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.Name, s.IPAddress, s.PHPVersion, s.SitesCount, s.Status)
	}
	tw.Flush()
}

func printServerIPs(out io.Writer, servers []domain.Server) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.IPAddress)
	}
	tw.Flush()
}

func printSites(out io.Writer, sites []domain.Site) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tTYPE\tPHP\tSTATUS")
	for _, s := range sites {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Domain, s.ProjectType, s.PHPVersion, s.Status)
	}
	tw.Flush()
}

func printSite(out io.Writer, s domain.Site) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	row("ID", fmt.Sprint(s.ID))
	row("Domain", s.Domain)
	row("Status", s.Status)
	row("Project type", s.ProjectType)
	row("Project root", s.ProjectRoot)
	row("Web directory", s.WebDirectory)
	row("PHP version", s.PHPVersion)
	row("System user", s.SystemUser)
	row("Repository", fmt.Sprint(s.HasRepository))
	row("Last deploy", s.LastDeployAt)
	row("Created", s.CreatedAt)

	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := s.Attributes[k]; v != nil {
			row(k, fmt.Sprint(v))
		}
	}
	tw.Flush()
}
