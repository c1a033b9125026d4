// internal/cli/crawl.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	crawlQuery    string
	crawlRepo     string
	crawlMaxRepos int
	crawlMaxFiles int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download Python files from GitHub repositories.",
	Long: `Crawl searches GitHub for repositories matching a query (or takes a single
repository) and downloads their Python files into the data directory. Each
file is scored with pylint and radon and recorded in the metadata log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (crawlQuery == "") == (crawlRepo == "") {
			return fmt.Errorf("provide exactly one of --query or --repo")
		}

		c := newCrawler()
		ctx := cmd.Context()

		if crawlRepo != "" {
			res, err := c.CrawlRepository(ctx, crawlRepo, crawlMaxFiles)
			if err != nil {
				return err
			}
			printCrawlSummary(res.FilesDownloaded, res.SuitableFiles, res.UnsuitableFiles)
			return nil
		}

		res, err := c.Crawl(ctx, crawlQuery, crawlMaxRepos, crawlMaxFiles)
		if err != nil {
			return err
		}
		printCrawlSummary(res.FilesDownloaded, res.SuitableFiles, res.UnsuitableFiles)
		return nil
	},
}

func printCrawlSummary(downloaded, suitable, unsuitable int) {
	fmt.Printf("Downloaded %d files: %d suitable, %d unsuitable\n", downloaded, suitable, unsuitable)
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlQuery, "query", "q", "", "GitHub repository search query")
	crawlCmd.Flags().StringVarP(&crawlRepo, "repo", "r", "", "single repository (owner/name or URL)")
	crawlCmd.Flags().IntVar(&crawlMaxRepos, "max-repos", 5, "maximum repositories to harvest")
	crawlCmd.Flags().IntVar(&crawlMaxFiles, "max-files", 10, "maximum files per repository")
	rootCmd.AddCommand(crawlCmd)
}
