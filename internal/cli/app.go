package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"wellnest/core/internal/api"
	"wellnest/core/internal/config"
	"wellnest/core/internal/endpoint"
	ilog "wellnest/core/internal/log"
	"wellnest/core/internal/metrics"
	"wellnest/core/internal/session"
	"wellnest/core/internal/storage"
)

type app struct {
	cfg      *config.AppConfig
	log      zerolog.Logger
	metrics  *metrics.Recorder
	resolver *endpoint.Resolver
	session  *session.Store
	client   *api.Client
	closer   io.Closer
}

func openApp(ctx context.Context, configFile string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger := ilog.NewWithWriter(logOut, cfg.Environment, cfg.Logging.Level)

	kv, closer, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	resolver, err := endpoint.NewResolver(cfg.API.PrimaryHost, cfg.API.SecondaryHost,
		endpoint.WithTimeout(cfg.API.Timeout),
		endpoint.WithLogger(logger),
		endpoint.WithMetrics(recorder),
	)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	store := session.New(kv, session.WithLogger(logger))
	return &app{
		cfg:      cfg,
		log:      logger,
		metrics:  recorder,
		resolver: resolver,
		session:  store,
		client: api.NewClient(resolver, store,
			api.WithLogger(logger),
			api.WithSessionTTL(cfg.Session.DefaultTTL),
		),
		closer: closer,
	}, nil
}

func (a *app) close() {
	if err := a.closer.Close(); err != nil {
		a.log.Error().Err(err).Msg("close storage")
	}
}

// command bundles the flag set and the opened app shared by every subcommand.
type command struct {
	name       string
	fs         *flag.FlagSet
	configFile string
	s          streams
}

func newCommand(name string, s streams) *command {
	c := &command{
		name: name,
		fs:   flag.NewFlagSet(name, flag.ContinueOnError),
		s:    s,
	}
	c.fs.SetOutput(s.err)
	c.fs.StringVar(&c.configFile, "config", "", "Config file (default: wellnest.yaml in ., ./config or ~/.wellnest)")
	return c
}

// open parses args and opens the app. A nil app comes with the exit code to
// return.
func (c *command) open(ctx context.Context, args []string) (*app, int) {
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, 0
		}
		return nil, 2
	}
	a, err := openApp(ctx, c.configFile, c.s.err)
	if err != nil {
		c.fail(err)
		return nil, 1
	}
	return a, 0
}

func (c *command) usage(msg string) int {
	fmt.Fprintf(c.s.err, "%s: %s\n", c.name, msg)
	return 2
}

func (c *command) fail(err error) int {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintf(c.s.err, "%s: %s\n", c.name, apiErr.Message)
		fields := make([]string, 0, len(apiErr.Errors))
		for field := range apiErr.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(c.s.err, "  %s: %s\n", field, strings.Join(apiErr.Errors[field], " "))
		}
	case errors.Is(err, api.ErrNotAuthenticated):
		fmt.Fprintf(c.s.err, "%s: not signed in, run `wellnest login` first\n", c.name)
	case errors.Is(err, endpoint.ErrUnreachable):
		fmt.Fprintf(c.s.err, "%s: cannot reach the wellnest API: %v\n", c.name, err)
	default:
		fmt.Fprintf(c.s.err, "%s: %v\n", c.name, err)
	}
	return 1
}

func envOr(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
