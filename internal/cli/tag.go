// internal/cli/tag.go
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage file tags.",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <id> <tag>...",
	Short: "Attach one or more tags to a file.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q", args[0])
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		for _, tag := range args[1:] {
			if err := st.AddTag(cmd.Context(), id, tag); err != nil {
				return err
			}
		}
		tags, err := st.FileTags(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("File %d tags: %s\n", id, strings.Join(tags, ", "))
		return nil
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <id> <tag>...",
	Short: "Detach one or more tags from a file.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q", args[0])
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		for _, tag := range args[1:] {
			if err := st.RemoveTag(cmd.Context(), id, tag); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	tagCmd.AddCommand(tagAddCmd, tagRemoveCmd)
	rootCmd.AddCommand(tagCmd)
}
