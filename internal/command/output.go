package command

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

// printJSON writes v indented to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stamp renders a unix timestamp for pretty listings.
func stamp(ts int64) string {
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}

// truncate shortens s for one-line listings.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
