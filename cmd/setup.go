package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/hubsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the configuration template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = defaultConfigPath
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("Edit %s and set hubspot.token and mailerlite.api_key (or HUBSYNC_HUBSPOT_TOKEN and HUBSYNC_MAILERLITE_API_KEY).\n", path)
}

// SetupDatabase initializes the run history database and runs migrations.
//
// The configuration template is written first when the config file does not exist yet.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(path); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			if err := shared.ApplyEnv(config); err != nil {
				return err
			}
			r.config = config
		}
	}

	if r.config.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", shared.ErrDatabaseDisabled)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.database(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
