// internal/cli/export.go
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the file collection as CSV or JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		switch exportFormat {
		case "csv":
			n, err := st.ExportCSV(cmd.Context(), out)
			if err != nil {
				return err
			}
			if exportOut != "" {
				fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", n, exportOut)
			}
		case "json":
			records, err := st.ExportToLog(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(records); err != nil {
				return err
			}
			if exportOut != "" {
				fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", len(records), exportOut)
			}
		default:
			return fmt.Errorf("unknown format %q, want csv or json", exportFormat)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or json")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
