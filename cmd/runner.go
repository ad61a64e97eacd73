package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/lmckone/dwsaver/internal/secrets"
	"github.com/lmckone/dwsaver/internal/server"
	"github.com/lmckone/dwsaver/internal/shared"
	"github.com/lmckone/dwsaver/internal/spotify"
	"github.com/lmckone/dwsaver/internal/store"
	"github.com/lmckone/dwsaver/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds the dependencies for CLI commands and provides a method for
// each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Setup initializes the database and runs migrations, creating a config
// file from the embedded template when none exists.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// Sync runs one batch reconciliation to completion. This is the entry point
// the external scheduler invokes.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, saver, err := r.buildSaver(config)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := saver.RunBatch(ctx, tasks.BatchOpts{
		NumWorkers: config.Sync.NumWorkers,
		RateLimit:  config.Sync.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]int{
			"total":   result.Total,
			"synced":  result.Synced,
			"skipped": result.Skipped,
			"revoked": result.Revoked,
			"failed":  result.Failed,
		})
	}

	return r.writePlain("Batch complete: %d accounts, %d synced, %d skipped, %d revoked, %d failed\n",
		result.Total, result.Synced, result.Skipped, result.Revoked, result.Failed)
}

// Serve runs the enrollment web server until the process is stopped.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, saver, err := r.buildSaver(config)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newClient(config)
	if err != nil {
		return err
	}
	codec, err := secrets.NewCodec(config.Sync.EncryptionKey)
	if err != nil {
		return err
	}

	handler := server.NewEnrollHandler(server.EnrollOpts{
		OAuth:       client.OAuthConfig(),
		API:         client,
		Store:       store.NewSQLiteStore(db),
		Codec:       codec,
		Saver:       saver,
		Logger:      r.logger,
		SignupLimit: config.Server.SignupLimit,
	})

	router := server.NewBasicRouter()
	router.Use(server.LogRequests(r.logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	r.logger.Info("listening", "addr", addr)
	return http.ListenAndServe(addr, router)
}

func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", configPath)
		return r.config, nil
	}
	return shared.LoadConfig(configPath)
}

// buildSaver wires the store, codec, client and saver for one command
// invocation. The caller owns closing the returned database.
func (r *Runner) buildSaver(config *shared.Config) (*sql.DB, *tasks.Saver, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	codec, err := secrets.NewCodec(config.Sync.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	client, err := newClient(config)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	saver := tasks.NewSaver(tasks.SaverOpts{
		Client:     client,
		Store:      store.NewSQLiteStore(db),
		Codec:      codec,
		Logger:     r.logger,
		SourceName: config.Sync.SourcePlaylist,
	})

	return db, saver, nil
}

func newClient(config *shared.Config) (*spotify.Client, error) {
	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return nil, shared.ErrMissingCredentials
	}

	return spotify.NewClient(spotify.ClientOpts{
		ClientID:     config.Spotify.ClientID,
		ClientSecret: config.Spotify.ClientSecret,
		RedirectURI:  config.Spotify.RedirectURI,
		Market:       config.Spotify.Market,
	})
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
