package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/memdb/internal/cli/config"
	"github.com/conduit-lang/memdb/internal/cli/ui"
	"github.com/conduit-lang/memdb/internal/logging"
	"github.com/conduit-lang/memdb/internal/orm/database"
	"github.com/conduit-lang/memdb/internal/orm/fixture"
	"github.com/conduit-lang/memdb/internal/orm/identity"
	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// errNoFixture is returned by commands that need entities when none is configured
var errNoFixture = errors.New("no fixture configured")

// app carries the state shared by every command of one invocation
type app struct {
	configPath  string
	fixturePath string
	logLevel    string
	noColor     bool

	cfg             *config.Config
	logger          *zap.Logger
	restoreIdentity func()

	// entities lists the registered names once a database is open, for
	// suggestions on unknown names
	entities []string
}

type fixtureError struct {
	path string
	err  error
}

func (e *fixtureError) Error() string {
	return fmt.Sprintf("fixture %s: %v", e.path, e.err)
}

func (e *fixtureError) Unwrap() error {
	return e.err
}

type configError struct {
	err error
}

func (e *configError) Error() string {
	return e.err.Error()
}

func (e *configError) Unwrap() error {
	return e.err
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memdb",
		Short: "In-memory relational store for nested object graphs",
		Long: color.CyanString(`memdb - schema-driven in-memory relational store

memdb loads entity declarations and seed data from a YAML fixture,
normalizes nested payloads into per-entity tables and answers queries
with eager-loaded relations.

Features:
  • Eleven relation kinds including polymorphic and many-to-many
  • Primary-key fast path for id lookups
  • Lifecycle hooks with veto semantics
  • Read-only HTTP explorer with Prometheus metrics`),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to memdb.yaml (default: search upwards from the working directory)")
	flags.StringVar(&a.fixturePath, "fixture", "", "Fixture file with entity declarations and seed data")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newInspectCommand(a))
	rootCmd.AddCommand(newQueryCommand(a))
	rootCmd.AddCommand(newDumpCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}

// setup loads configuration, builds the logger and installs the identity
// strategy for the duration of the command
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.noColor {
		color.NoColor = true
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return &configError{err: err}
	}
	if cmd.Flags().Changed("fixture") {
		cfg.Fixture = a.fixturePath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return &configError{err: err}
	}
	a.logger = logger

	gen, err := identity.FromStrategy(cfg.Identity.Strategy)
	if err != nil {
		return &configError{err: err}
	}
	a.restoreIdentity = identity.SetDefault(gen)
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFrom(config.New(), a.configPath)
	}
	if found, err := config.FindConfig(); err == nil {
		return config.LoadFrom(config.New(), found)
	}
	return config.LoadFrom(config.New(), "")
}

func (a *app) teardown() {
	if a.restoreIdentity != nil {
		a.restoreIdentity()
		a.restoreIdentity = nil
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

// open builds and seeds the database described by the configured fixture
func (a *app) open(ctx context.Context) (*database.Database, error) {
	if a.cfg.Fixture == "" {
		return nil, &fixtureError{path: "(none)", err: errNoFixture}
	}

	db, err := fixture.Open(ctx, a.cfg.Fixture,
		database.WithLogger(a.logger),
		database.WithRecursiveDepth(a.cfg.Query.RecursiveDepth),
	)
	if err != nil {
		return nil, &fixtureError{path: a.cfg.Fixture, err: err}
	}

	a.entities = db.Registry().Names()
	a.logger.Debug("fixture loaded",
		zap.String("path", a.cfg.Fixture),
		zap.Strings("entities", a.entities),
	)
	return db, nil
}

// renderError writes err in the CLI's error format
func (a *app) renderError(w io.Writer, err error) {
	var unknown *schema.UnknownEntityError
	var fixtureErr *fixtureError
	var cfgErr *configError

	switch {
	case errors.As(err, &unknown) && len(a.entities) > 0:
		fmt.Fprint(w, ui.UnknownEntityError(unknown.Name, a.entities, a.noColor))
	case errors.As(err, &fixtureErr):
		fmt.Fprint(w, ui.FixtureError(fixtureErr.path, fixtureErr.err, a.noColor))
	case errors.As(err, &cfgErr):
		fmt.Fprint(w, ui.ConfigError(cfgErr.Error(), a.noColor))
	case errors.Is(err, query.ErrUnknownRelation):
		ui.WriteError(w, ui.ErrorOptions{
			Context:      "unknown relation",
			Problem:      err.Error(),
			HelpCommands: []string{"Show relations: memdb inspect <entity>"},
			NoColor:      a.noColor,
		})
	default:
		ui.WriteError(w, ui.ErrorOptions{Problem: err.Error(), NoColor: a.noColor})
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the memdb version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			kv := ui.NewKeyValueTable(out, color.NoColor)
			kv.AddRow("memdb version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", goVer)
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	a := &app{}
	rootCmd := newRootCommand(a)
	err := rootCmd.Execute()
	// PersistentPostRun is skipped when a command fails
	a.teardown()
	if err != nil {
		a.renderError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}
