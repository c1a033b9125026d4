// internal/cli/view.go
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// viewPreviewBytes is how much of the file body view prints.
const viewPreviewBytes = 1000

var viewFull bool

var viewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show one file's metadata and a content preview.",
	Args:  cobra.ExactArgs(1),
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

		d, err := st.GetFile(cmd.Context(), id)
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s (%s)\n", bold("File:"), d.Path, d.RepoFullName)
		if d.QualityScore != nil {
			fmt.Printf("%s %.1f/10\n", bold("Quality:"), *d.QualityScore)
		}
		fmt.Printf("%s %d\n", bold("Code lines:"), d.CodeLines)
		fmt.Printf("%s %s\n", bold("Suitable:"), d.IsSuitable)
		if d.UnsuitableReason != nil {
			fmt.Printf("%s %s\n", bold("Reason:"), *d.UnsuitableReason)
		}
		fmt.Printf("%s avg %.1f, max %d over %d functions\n", bold("Complexity:"),
			d.Complexity.AvgComplexity, d.Complexity.MaxComplexity, d.Complexity.FunctionCount)
		if len(d.Tags) > 0 {
			fmt.Printf("%s %s\n", bold("Tags:"), strings.Join(d.Tags, ", "))
		}
		fmt.Printf("%s %s\n", bold("Downloaded:"), d.DownloadedAt)

		content, err := os.ReadFile(d.LocalPath)
		if err != nil {
			fmt.Println("\n(local copy not available)")
			return nil
		}
		fmt.Println()
		if viewFull || len(content) <= viewPreviewBytes {
			fmt.Println(string(content))
			return nil
		}
		fmt.Println(string(content[:viewPreviewBytes]))
		fmt.Printf("... (%d more bytes, use --full)\n", len(content)-viewPreviewBytes)
		return nil
	},
}

func init() {
	viewCmd.Flags().BoolVar(&viewFull, "full", false, "print the whole file")
	rootCmd.AddCommand(viewCmd)
}
