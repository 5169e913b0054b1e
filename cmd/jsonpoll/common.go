package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/jsonpoll"
	"github.com/jpalmerr/jsonpoll/config"
)

// addSourceFlags registers the flags that choose what to poll.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file")
	cmd.Flags().String("url", "", "URL to poll (instead of a config file)")
	cmd.Flags().String("field", "", "dot path of the part of each response to print")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.MarkFlagsOneRequired("config", "url")
	cmd.MarkFlagsMutuallyExclusive("config", "url")
}

// loadConfig reads the config file or builds one from --url, then applies
// --field.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	rawURL, _ := cmd.Flags().GetString("url")

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.ForURL(rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("field") {
		cfg.Field, _ = cmd.Flags().GetString("field")
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}

// newLogger creates a JSON logger on stderr for CLI use.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// selectField narrows a raw JSON value to field. An empty field keeps the
// whole value.
func selectField(value json.RawMessage, field string) (json.RawMessage, error) {
	if field == "" {
		return value, nil
	}
	v, err := jsonpoll.Lookup(value, field)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
