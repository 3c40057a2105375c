package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spilld/internal/config"
)

const defaultAddr = ":8080"

// lookupEnv is replaced in tests.
var lookupEnv config.LookupFunc = config.OSLookup

// resolveConfig layers the config file, then environment variables, then
// flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, opts *options, lookup config.LookupFunc) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	cfg, err := config.FromEnv(lookup, cfg)
	if err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("addr") || cfg.Addr == "" {
		cfg.Addr = opts.addr
	}
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = opts.logJSON
	}
	if flags.Changed("spill") {
		cfg.Spill = &opts.spill
	}
	if flags.Changed("spill-on-demand") {
		cfg.SpillOnDemand = &opts.spillOnDemand
	}
	if flags.Changed("spill-device-limit") {
		cfg.SpillDeviceLimit = &opts.spillDeviceLimit
	}
	if flags.Changed("device-capacity") {
		cfg.DeviceCapacity = opts.deviceCapacity
	}
	if flags.Changed("max-allocation") {
		cfg.MaxAllocation = opts.maxAllocation
	}
	if flags.Changed("cors-enabled") {
		cfg.CORSEnabled = opts.corsEnabled
	}
	if flags.Changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(opts.corsOrigins)
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = opts.rateLimit
	}
	if flags.Changed("rate-burst") {
		cfg.RateBurst = opts.rateBurst
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level string, jsonOut bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if !jsonOut {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
