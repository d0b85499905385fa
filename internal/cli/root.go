// Package cli defines the mockapi command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/mockapi/internal/config"
	"github.com/sakif/mockapi/internal/fixture"
	"github.com/sakif/mockapi/internal/repository/sqlite"
	"github.com/sakif/mockapi/internal/server"
	"github.com/sakif/mockapi/internal/service"
)

// App carries the flags shared by every subcommand.
type App struct {
	configPath string
}

// env is what a subcommand needs once configuration is resolved. The
// caller closes db.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sqlite.DB
}

func (e *env) services() fixture.Services {
	return fixture.Services{
		Projects:  service.NewProjectService(e.db, e.logger),
		Endpoints: service.NewEndpointService(e.db, e.db, e.logger),
		Logger:    e.logger,
	}
}

// open loads configuration, builds the logger and opens the database,
// creating its directory if needed.
func (a *App) open(logOut io.Writer, override func(*config.Config)) (*env, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := newLogger(logOut, cfg.Log)

	if dir := filepath.Dir(cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", slog.String("path", cfg.DB.Path))

	return &env{cfg: cfg, logger: logger, db: db}, nil
}

func newServeCmd(app *App) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and the mock responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var override func(*config.Config)
			if cmd.Flags().Changed("port") {
				override = func(c *config.Config) { c.Server.Port = port }
			}

			e, err := app.open(cmd.OutOrStdout(), override)
			if err != nil {
				return err
			}
			defer e.db.Close()

			return server.New(e.cfg.Server, e.logger, e.db).Start(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config and PORT)")
	return cmd
}

func newProjectsCmd(app *App) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer e.db.Close()

			projects, err := e.services().Projects.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", service.MaxListLimit, "maximum number of projects to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of projects to skip")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write a project and its endpoints as a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer e.db.Close()

			doc, err := fixture.Export(cmd.Context(), e.services(), args[0])
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return fixture.Encode(cmd.OutOrStdout(), doc)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := fixture.Encode(f, doc); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a new project from a YAML fixture (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open fixture: %w", err)
				}
				defer f.Close()
				in = f
			}

			doc, err := fixture.Decode(in)
			if err != nil {
				return err
			}

			e, err := app.open(cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer e.db.Close()

			id, err := fixture.Import(cmd.Context(), e.services(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	return cmd
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mockapi",
		Short:         "Mock API server: define projects and endpoints, then serve canned JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "",
		"path to a YAML config file (default $"+config.EnvConfigPath+")")

	cmd.AddCommand(
		newServeCmd(app),
		newProjectsCmd(app),
		newExportCmd(app),
		newImportCmd(app),
	)
	return cmd
}

// Execute runs the command line. SIGINT and SIGTERM cancel the command's
// context, which is how serve shuts down.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(&App{})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
