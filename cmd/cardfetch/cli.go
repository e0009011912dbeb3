package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"cardfetch/internal/config"
	"cardfetch/internal/server"
	"cardfetch/pkg/client"
	"cardfetch/pkg/controller"
	"cardfetch/pkg/logging"
)

// appEnv carries configuration loaded once in the app's Before hook.
type appEnv struct {
	cfg *config.Config
}

// newApp creates the CLI application with all commands.
func newApp() *cli.App {
	env := &appEnv{}

	app := &cli.App{
		Name:    "cardfetch",
		Usage:   "Fetch Magic card data in the background and watch it arrive",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error"},
			&cli.BoolFlag{Name: "pretty", Usage: "Human-readable log output"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			env.cfg = cfg

			level := cfg.Logging.Level
			if c.IsSet("log-level") {
				level = c.String("log-level")
			}
			logging.Setup(logging.Config{
				Level:  logging.LogLevel(level),
				Pretty: cfg.Logging.Pretty || c.Bool("pretty"),
			})
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(env),
			submitCmd(env),
			watchCmd(env),
			statusCmd(env),
			exportCmd(env),
			clearCmd(env),
		},
	}
	// Disable the default exit handler so errors surface through Run.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd runs the card-fetching service.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the card-fetching service",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides config)"},
			&cli.StringFlag{Name: "redis", Usage: "Redis address for the card cache (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := env.cfg.Server
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}
			if c.IsSet("redis") {
				cfg.RedisAddr = c.String("redis")
			}

			srv, err := server.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

// submitCmd queues a batch of card names and, with --wait, follows the
// fetch until every card has resolved.
func submitCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Queue card names for fetching (names as args, or newline-separated on stdin)",
		ArgsUsage: "[name ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Poll until every queued card has resolved"},
			&cli.StringFlag{Name: "html", Usage: "Write the rendered card list to this HTML file on every update"},
		},
		Action: func(c *cli.Context) error {
			raw, err := namesInput(c)
			if err != nil {
				return err
			}

			ctrl, view, err := newController(env, c.String("html"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if c.Bool("wait") {
				err = ctrl.SubmitAndWait(ctx, raw)
			} else {
				err = ctrl.SubmitBatch(ctx, raw)
			}
			if err != nil {
				return err
			}

			printRecords(view.stdout, ctrl.Snapshot())
			return nil
		},
	}
}

// watchCmd polls the service until the queue drains, reconciling the
// card list on every tick.
func watchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow an in-flight fetch until the queue is empty",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "html", Usage: "Write the rendered card list to this HTML file on every update"},
		},
		Action: func(c *cli.Context) error {
			ctrl, view, err := newController(env, c.String("html"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ctrl.PollUntilIdle(ctx); err != nil {
				return err
			}

			printRecords(view.stdout, ctrl.Snapshot())
			return nil
		},
	}
}

// statusCmd prints the service's queue and cache counters.
func statusCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show queue size, cache size and fetch state",
		Action: func(c *cli.Context) error {
			cl, err := newClient(env)
			if err != nil {
				return err
			}

			status, err := cl.Status(c.Context)
			if err != nil {
				return err
			}
			return outputJSON(status)
		},
	}
}

// exportCmd downloads card data as CSV.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export cached card data as CSV (all cards, or just the named ones)",
		ArgsUsage: "[name ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "card_data.csv", Usage: `Output file ("-" for stdout)`},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(env)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			out := c.String("out")
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := cl.Export(c.Context, c.Args().Slice(), w); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(os.Stderr, "wrote %s\n", out)
			}
			return nil
		},
	}
}

// clearCmd drops the service's cache and queue.
func clearCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Clear the service's card cache and lookup queue",
		Action: func(c *cli.Context) error {
			ctrl, _, err := newController(env, "")
			if err != nil {
				return err
			}
			return ctrl.Clear(c.Context)
		},
	}
}

// newClient builds an API client from the loaded configuration.
func newClient(env *appEnv) (*client.Client, error) {
	cfg := client.DefaultConfig(env.cfg.Client.BaseURL)
	if env.cfg.Client.Timeout > 0 {
		cfg.Timeout = env.cfg.Client.Timeout
	}
	return client.New(cfg)
}

// newController builds a controller with a console view. htmlPath, when
// set, receives the rendered card list page on every reconcile.
func newController(env *appEnv, htmlPath string) (*controller.Controller, *consoleView, error) {
	cl, err := newClient(env)
	if err != nil {
		return nil, nil, err
	}

	view := newConsoleView(htmlPath)
	opts := controller.DefaultOptions()
	if env.cfg.Client.PollInterval > 0 {
		opts.PollInterval = env.cfg.Client.PollInterval
	}
	opts.PollTimeout = env.cfg.Client.PollTimeout

	return controller.New(cl, view, opts), view, nil
}

// namesInput gathers card names from args, falling back to stdin, and
// joins them into the newline-separated form SubmitBatch parses.
func namesInput(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), "\n"), nil
	}
	if !stdinHasData() {
		return "", fmt.Errorf("no card names: pass them as arguments or pipe them on stdin")
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(raw), nil
}

// stdinHasData returns true if stdin is piped (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
