package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"spilld/pkg/types"
)

func newStatusCmd(opts *options) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Print the status of a running spilld",
		Example: "  spilld status --server http://127.0.0.1:8080",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := serverURL(cmd, opts, server)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := fetchStatus(ctx, server)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Base URL of the server (defaults to --addr)")
	return cmd
}

// serverURL returns server, or the client URL of the resolved listen address
// when server is empty.
func serverURL(cmd *cobra.Command, opts *options, server string) (string, error) {
	if server != "" {
		return server, nil
	}
	cfg, err := resolveConfig(cmd, opts, lookupEnv)
	if err != nil {
		return "", err
	}
	return baseURL(cfg.Addr), nil
}

// baseURL turns a listen address such as ":8080" into a client URL.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func fetchStatus(ctx context.Context, server string) (types.StatusResponse, error) {
	var st types.StatusResponse
	err := getJSON(ctx, server, "/status", &st)
	return st, err
}

// getJSON decodes the JSON body of GET server+path into out. Non-200
// responses are reported with the server's error message.
func getJSON(ctx context.Context, server, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(server, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("get %s: %s: %s", path, resp.Status, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, lookupEnv)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
