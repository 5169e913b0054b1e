package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/jsonpoll/config"
)

// validateCmd validates a config file without polling.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a jsonpoll configuration file without polling.

This command parses the YAML, expands environment variables, validates all
fields and prints the effective settings, defaults included. It's useful for
CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  jsonpoll validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	pollCfg, err := config.BuildConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	field := cfg.Field
	if field == "" {
		field = "(whole response)"
	}
	listen := "off"
	if cfg.Listen > 0 {
		listen = fmt.Sprintf(":%d", cfg.Listen)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  URL:                %s\n", pollCfg.URL())
	fmt.Fprintf(out, "  Poll interval:      %s\n", pollCfg.PollInterval())
	fmt.Fprintf(out, "  Request timeout:    %s\n", orDisabled(pollCfg.RequestTimeout()))
	fmt.Fprintf(out, "  Max idle per host:  %d\n", pollCfg.PoolMaxIdlePerHost())
	fmt.Fprintf(out, "  Pool idle timeout:  %s\n", orNever(pollCfg.PoolIdleTimeout()))
	fmt.Fprintf(out, "  TCP keepalive:      %s\n", orDisabled(pollCfg.TCPKeepalive()))
	fmt.Fprintf(out, "  Headers:            %d\n", len(cfg.Headers))
	fmt.Fprintf(out, "  Field:              %s\n", field)
	fmt.Fprintf(out, "  Listen:             %s\n", listen)

	return nil
}

func orDisabled(d time.Duration) string {
	if d == 0 {
		return "disabled"
	}
	return d.String()
}

func orNever(d time.Duration) string {
	if d == 0 {
		return "never"
	}
	return d.String()
}
