package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/application/services/explosion"
	"github.com/vsinha/shopfloor/pkg/application/services/orders"
	"github.com/vsinha/shopfloor/pkg/application/services/structure"
	"github.com/vsinha/shopfloor/pkg/infrastructure/config"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/metrics"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/sqlstore"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

// ErrUsage is returned when the command line cannot be understood
var ErrUsage = errors.New("usage error")

// App dispatches shopfloor subcommands against the configured store
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func NewApp(cfg *config.Config, logger *zap.Logger, out io.Writer) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger, out: out}
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

func (a *App) commands() map[string]command {
	list := []command{
		{"load", "load items and structure edges from CSV files", a.runLoad},
		{"explode", "print the multi-level structure of an item", a.runExplode},
		{"validate", "check the stored structure for cycles and inconsistencies", a.runValidate},
		{"create", "create a production order", a.runCreate},
		{"issue", "issue materials to an order: issue -order N PART=QTY...", a.runIssue},
		{"receive", "receive finished goods against an order", a.runReceive},
		{"show", "show one order with its lines", a.runShow},
		{"list", "list production orders", a.runList},
	}
	byName := make(map[string]command, len(list))
	for _, c := range list {
		byName[c.name] = c
	}
	return byName
}

// Usage writes the list of subcommands
func (a *App) Usage() {
	cmds := a.commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Usage: shopfloor [-config file] [-env file] <command> [flags]")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-10s %s\n", name, cmds[name].summary)
	}
}

// Run executes the subcommand named by args[0]
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.Usage()
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}

	cmd, ok := a.commands()[args[0]]
	if !ok {
		a.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	env, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	runErr := cmd.run(ctx, env, args[1:])
	if err := a.writeMetrics(env.collector); err != nil {
		a.logger.Warn("failed to write metrics", zap.Error(err))
	}
	return runErr
}

// environment holds the services of one command invocation
type environment struct {
	store      *sqlstore.Store
	collector  *metrics.Collector
	explosion  *explosion.Engine
	orders     *orders.Service
	structure  *structure.Service
	closeFuncs []func() error
}

func (e *environment) close() {
	for i := len(e.closeFuncs) - 1; i >= 0; i-- {
		_ = e.closeFuncs[i]()
	}
}

func (a *App) open(ctx context.Context) (*environment, error) {
	store, err := sqlstore.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	env := &environment{
		store:      store,
		collector:  metrics.NewCollector(a.cfg.Metrics.Namespace),
		closeFuncs: []func() error{store.Close},
	}

	publisher := events.MultiPublisher{events.LogPublisher{Logger: a.logger}}
	if a.cfg.Redis.Enabled {
		client, err := events.DialRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			env.close()
			return nil, err
		}
		env.closeFuncs = append(env.closeFuncs, client.Close)
		publisher = append(publisher, events.NewRedisPublisher(client, a.cfg.Redis.Channel))
	}

	env.explosion = explosion.NewEngine(store,
		explosion.WithLogger(a.logger),
		explosion.WithMetrics(env.collector))
	env.orders = orders.NewService(store, store,
		orders.WithLogger(a.logger),
		orders.WithPublisher(publisher),
		orders.WithMetrics(env.collector),
		orders.WithBackflush(a.cfg.Orders.Backflush))
	env.structure = structure.NewService(store, store,
		structure.WithLogger(a.logger),
		structure.WithPublisher(publisher))
	return env, nil
}

func (a *App) writeMetrics(collector *metrics.Collector) error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, collector.Registry())
}

// flagSet returns a flag set that reports errors instead of exiting, with the
// shared -format flag registered
func (a *App) flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	format := fs.String("format", "text", "Output format: text, json, csv")
	return fs, format
}

func (a *App) printer(format string) (*output.Printer, error) {
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return output.NewPrinter(a.out, f), nil
}

func parseArgs(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: -%s is required", ErrUsage, name)
	}
	return nil
}
