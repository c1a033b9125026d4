// internal/cli/backup.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeharvest/internal/store"
)

var backupDir string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the database and metadata log to a timestamped directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := store.Backup(backupDir, cfg.DBFile(), cfg.MetadataFile())
		if err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", dest)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupDir, "dir", "d", "backups", "directory to write backups into")
	rootCmd.AddCommand(backupCmd)
}
