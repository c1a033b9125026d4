// internal/cli/stats.go
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Statistics(cmd.Context())
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %d repositories, %d files (%d suitable), %d tags\n",
			bold("Collection:"), stats.RepositoryCount, stats.FileCount,
			stats.SuitableFileCount, stats.TagCount)
		fmt.Printf("%s %.2f average score, %.0f average code lines\n",
			bold("Quality:"), stats.AverageQualityScore, stats.AverageCodeLines)

		fmt.Printf("\n%s\n", bold("Score distribution"))
		buckets := []string{"0-2", "2-4", "4-6", "6-8", "8-10"}
		for i, label := range buckets {
			fmt.Printf("  %5s: %d\n", label, stats.QualityDistribution[i])
		}

		if len(stats.LicenseDistribution) > 0 {
			fmt.Printf("\n%s\n", bold("Licenses"))
			names := make([]string, 0, len(stats.LicenseDistribution))
			for name := range stats.LicenseDistribution {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %d\n", name, stats.LicenseDistribution[name])
			}
		}

		if len(stats.TopRepositories) > 0 {
			fmt.Printf("\n%s\n", bold("Top repositories"))
			table := tablewriter.NewWriter(os.Stdout)
			table.Header([]string{"Repository", "Files"})
			var data [][]string
			for _, r := range stats.TopRepositories {
				data = append(data, []string{r.Name, strconv.FormatInt(r.FileCount, 10)})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
		}

		if len(stats.TopTags) > 0 {
			fmt.Printf("\n%s\n", bold("Top tags"))
			for _, tag := range stats.TopTags {
				fmt.Printf("  %s: %d\n", tag.Name, tag.Count)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
