// Package cli implements the ploi command line.
package cli

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

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/ploi/internal/config"
	"github.com/jbweber/homelab/ploi/internal/coordinator"
	"github.com/jbweber/homelab/ploi/internal/datastore"
	"github.com/jbweber/homelab/ploi/internal/notify"
	"github.com/jbweber/homelab/ploi/internal/ploi"
	"github.com/jbweber/homelab/ploi/internal/sshclient"
)

// annotationOffline marks commands that run without an API token.
const annotationOffline = "offline"

// errReported marks errors whose notification has already been printed.
var errReported = errors.New("reported")

func reported(err error) error {
	return fmt.Errorf("%w: %w", errReported, err)
}

type connectFunc func(ctx context.Context, t sshclient.Target, opts sshclient.Options) error

// app is the state shared by every command of one invocation.
type app struct {
	cfg     *config.Config
	noCache bool
	verbose bool

	logger   *slog.Logger
	notifier notify.Notifier
	store    datastore.Store
	closers  []func() error
	client   *ploi.Client
	coord    *coordinator.Coordinator

	connect connectFunc
}

func newApp() *app {
	cfg := config.NewConfig()
	cfg.LoadEnv()
	return &app{cfg: cfg, connect: sshclient.Connect}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ploi",
		Short: "Browse and manage Ploi servers and sites",
		Long: `ploi lists the servers and sites of a Ploi account and runs server and
site actions. Lists are served from a local cache first and refreshed from
the API.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error { return a.teardown() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.APIURL, "api-url", a.cfg.APIURL, "Ploi API base URL ($"+config.EnvAPIURL+")")
	flags.StringVar(&a.cfg.APIToken, "token", a.cfg.APIToken, "Ploi API token ($"+config.EnvAPIToken+")")
	flags.StringVar(&a.cfg.CachePath, "cache", a.cfg.CachePath, "cache database path ($"+config.EnvCachePath+")")
	flags.StringVar(&a.cfg.SSHUser, "ssh-user", a.cfg.SSHUser, "user for SSH connections ($"+config.EnvSSHUser+")")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "API request timeout")
	flags.BoolVar(&a.noCache, "no-cache", false, "keep the cache in memory for this run only")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log API requests to stderr")

	root.AddCommand(
		a.serversCommand(),
		a.sitesCommand(),
		a.siteCommand(),
		a.rebootCommand(),
		a.restartCommand(),
		a.opcacheCommand(),
		a.deployCommand(),
		a.flushCacheCommand(),
		a.sshCommand(),
		a.openCommand(),
		a.cacheCommand(),
		a.serveCommand(),
	)
	return root
}

// setup builds the logger, store, client and coordinator for the command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// errors only unless --verbose
	level := slog.LevelError
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if cmd.Annotations[annotationOffline] == "" {
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	if a.noCache {
		a.store = datastore.NewMemoryStore(nil)
	} else {
		ds, err := a.cfg.InitializeDatastore(cmd.Context())
		if err != nil {
			return err
		}
		a.store = ds
		a.closers = append(a.closers, ds.Close)
	}

	a.notifier = notify.NewWriterNotifier(cmd.ErrOrStderr())
	a.client = ploi.New(ploi.Options{
		BaseURL:    a.cfg.APIURL,
		Token:      a.cfg.APIToken,
		HTTPClient: &http.Client{Timeout: a.cfg.Timeout},
		Notifier:   a.notifier,
		Logger:     a.logger,
	})
	// list loading only speaks up when it fails
	a.coord = coordinator.New(a.store, a.client.WithNotifier(notify.FailuresOnly(a.notifier)),
		coordinator.WithLogger(a.logger))
	return nil
}

func (a *app) teardown() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// execute runs the command tree once. Resources are released even when the
// command fails.
func (a *app) execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.teardown()
	return root.ExecuteContext(ctx)
}

// Execute runs ploi with the process arguments and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp().execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return 1
}
