package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/jsonpoll"
	"github.com/jpalmerr/jsonpoll/config"
)

// fetchLine is printed by the fetch command.
type fetchLine struct {
	ElapsedMs int64           `json:"elapsed_ms"`
	Value     json.RawMessage `json:"value"`
}

// fetchCmd performs a single fetch-and-decode.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and decode a URL once",
	Long: `Fetch a JSON URL once with the same timeout, headers and decoding as
watch, and print the result:

  {"elapsed_ms":12,"value":{...}}

Exit codes:
  0 - the response was fetched and decoded
  1 - the request, status check or decode failed (error printed to stderr)

Example:
  jsonpoll fetch --url https://api.example.com/ticker --field price
  jsonpoll fetch -c config.yaml`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addSourceFlags(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pollCfg, err := config.BuildConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build poller config: %w", err)
	}

	opts := append(config.Options(cfg), jsonpoll.WithLogger(logger))
	p, err := jsonpoll.New[json.RawMessage](pollCfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	value, elapsed, err := p.FetchOnce(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	selected, err := selectField(value, cfg.Field)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	return json.NewEncoder(cmd.OutOrStdout()).Encode(fetchLine{
		ElapsedMs: elapsed.Milliseconds(),
		Value:     selected,
	})
}
