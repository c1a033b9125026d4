// internal/cli/search.go
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"codeharvest/internal/model"
	"codeharvest/internal/store"
)

var (
	searchTags     []string
	searchMin      float64
	searchSuitable bool
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search downloaded files.",
	Long: `Search lists files in the database matching a free-text query on name or
path, optionally narrowed by tags, a minimum quality score or suitability.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.Filter{
			Tags:         searchTags,
			SuitableOnly: searchSuitable,
			Limit:        searchLimit,
		}
		if len(args) == 1 {
			filter.Query = args[0]
		}
		if cmd.Flags().Changed("min-quality") {
			filter.MinQuality = &searchMin
		}

		results, err := st.SearchFiles(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No files found")
			return nil
		}
		printFileTable(results)
		return nil
	},
}

func printFileTable(results []model.FileSummary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	grey := color.New(color.FgHiBlack).SprintFunc()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"ID", "Repository", "File", "Score", "Lines", "Suitable", "Tags"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range results {
		score := "-"
		if r.QualityScore != nil {
			score = fmt.Sprintf("%.1f", *r.QualityScore)
		}
		verdict := grey("?")
		switch r.IsSuitable {
		case model.Suitable:
			verdict = green("yes")
		case model.Unsuitable:
			verdict = red("no")
		}
		data = append(data, []string{
			fmt.Sprintf("%d", r.ID),
			r.RepoFullName,
			r.Path,
			score,
			fmt.Sprintf("%d", r.CodeLines),
			verdict,
			strings.Join(r.Tags, ", "),
		})
	}
	if err := table.Bulk(data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if err := table.Render(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func init() {
	searchCmd.Flags().StringSliceVarP(&searchTags, "tags", "t", nil, "match files with any of these tags")
	searchCmd.Flags().Float64Var(&searchMin, "min-quality", 0, "minimum quality score")
	searchCmd.Flags().BoolVar(&searchSuitable, "suitable-only", false, "only files marked suitable")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum results")
	rootCmd.AddCommand(searchCmd)
}
