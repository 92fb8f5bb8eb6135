package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mentorly/internal/api"
	"mentorly/internal/articles"
)

var publishTitle string

func init() {
	publishCmd.Flags().StringVarP(&publishTitle, "title", "t", "", "Article title (defaults to the first heading)")
	rootCmd.AddCommand(publishCmd)
}

var publishCmd = &cobra.Command{
	Use:   "publish <markdown-file>",
	Short: "Publish a markdown file as an article",
	Long:  "Render a markdown file to sanitized HTML and publish it under the logged-in account.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := authedClient(cfg)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", args[0], err)
		}
		markdown := string(raw)

		title := publishTitle
		if title == "" {
			title = firstHeading(markdown)
		}
		if title == "" {
			return fmt.Errorf("no title given and no heading found, use --title")
		}

		html, err := articles.Render(markdown)
		if err != nil {
			return err
		}
		if strings.TrimSpace(html) == "" {
			return fmt.Errorf("article body is empty after rendering")
		}

		article, err := client.PublishArticle(cmd.Context(), api.PublishArticleRequest{
			Title: title,
			HTML:  html,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Published %q as %s\n", article.Title, article.ID)
		return nil
	},
}

// firstHeading extracts the first markdown heading text, if any.
func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}
