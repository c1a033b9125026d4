// internal/cli/sync.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeharvest/internal/store"
)

var syncPolicy string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the metadata log into the database.",
	Long: `Sync imports every record of the metadata log into the relational store
and writes the merged view back to the log. The conflict policy decides
whether existing rows keep their stored values or take the log's.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPolicy == "" {
			syncPolicy = cfg.ConflictPolicy
		}
		policy, err := store.ParseConflictPolicy(syncPolicy)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		meta := metadataStore()
		records := meta.Load()
		repos, files, err := st.ImportFromLog(cmd.Context(), records, policy)
		if err != nil {
			return err
		}

		merged, err := st.ExportToLog(cmd.Context())
		if err != nil {
			return err
		}
		if err := meta.Save(merged); err != nil {
			return err
		}

		fmt.Printf("Imported %d repositories and %d files (%s), log now has %d records\n",
			repos, files, policy, len(merged))
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncPolicy, "conflict", "", "conflict policy: keep or overwrite (default from config)")
	rootCmd.AddCommand(syncCmd)
}
