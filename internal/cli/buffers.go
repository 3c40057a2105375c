package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"spilld/pkg/types"
)

func newBuffersCmd(opts *options) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:     "buffers",
		Short:   "List the buffers tracked by a running spilld",
		Example: "  spilld buffers --server http://127.0.0.1:8080",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := serverURL(cmd, opts, server)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			var resp types.BuffersResponse
			if err := getJSON(ctx, server, "/buffers", &resp); err != nil {
				return err
			}
			return printBuffers(cmd.OutOrStdout(), resp.Buffers)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Base URL of the server (defaults to --addr)")
	return cmd
}

func printBuffers(w io.Writer, bufs []types.BufferStatus) error {
	table := tablewriter.NewTable(w, tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
		Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.Off}},
	})))
	table.Header([]string{"ID", "SIZE", "LOCATION", "ADDRESS", "SPILLABLE", "EXPOSED", "OWNERS", "HANDLES"})
	var total int64
	for _, b := range bufs {
		total += b.Size
		row := []string{
			strconv.FormatUint(b.ID, 10),
			humanSize(b.Size),
			b.Location,
			b.Address,
			strconv.FormatBool(b.Spillable),
			strconv.FormatBool(b.Exposed),
			strconv.Itoa(b.Owners),
			strconv.Itoa(b.Handles),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d buffers, %s\n", len(bufs), humanSize(total))
	return err
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
