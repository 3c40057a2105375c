// Package cli implements the spilld command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// options collects the flags shared by every subcommand.
type options struct {
	configPath string
	addr       string
	logLevel   string
	logJSON    bool

	spill            bool
	spillOnDemand    bool
	spillDeviceLimit int64
	deviceCapacity   int64
	maxAllocation    int64
	corsEnabled      bool
	corsOrigins      string
	rateLimit        float64
	rateBurst        int
}

// NewRootCmd constructs the cobra command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "spilld",
		Short:         "Device buffer spill manager daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&opts.addr, "addr", defaultAddr, "HTTP listen address, e.g. :8080")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	pf.BoolVar(&opts.logJSON, "log-json", false, "Emit JSON logs instead of console output")
	pf.BoolVar(&opts.spill, "spill", false, "Enable the spill manager")
	pf.BoolVar(&opts.spillOnDemand, "spill-on-demand", true, "Spill on allocation failure (defaults to --spill)")
	pf.Int64Var(&opts.spillDeviceLimit, "spill-device-limit", 0, "Device memory limit in bytes enforced on registration")
	pf.Int64Var(&opts.deviceCapacity, "device-capacity", 0, "Simulated device capacity in bytes (0=unlimited)")
	pf.Int64Var(&opts.maxAllocation, "max-allocation", 0, "Largest single allocation accepted by the API in bytes (0=1GiB)")
	pf.BoolVar(&opts.corsEnabled, "cors-enabled", false, "Enable CORS")
	pf.StringVar(&opts.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	pf.Float64Var(&opts.rateLimit, "rate-limit", 0, "Mutating requests per second before 429 (0=unlimited)")
	pf.IntVar(&opts.rateBurst, "rate-burst", 0, "Burst allowed above --rate-limit (defaults to the rate)")

	root.AddCommand(newServeCmd(opts), newStatusCmd(opts), newBuffersCmd(opts), newConfigCmd(opts))
	return root
}

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code (0 for success, non-zero on error).
func MainWithArgs(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	if len(args) == 0 {
		_ = root.Usage()
		return 2
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code for use by cmd/spilld.
func Main() int { return MainWithArgs(os.Args[1:], os.Stdout, os.Stderr) }
