package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mentorSkill string

func init() {
	mentorsCmd.Flags().StringVarP(&mentorSkill, "skill", "s", "", "Filter by skill")
	rootCmd.AddCommand(mentorsCmd)
}

var mentorsCmd = &cobra.Command{
	Use:   "mentors",
	Short: "Browse mentors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := authedClient(cfg)
		if err != nil {
			return err
		}

		page, err := client.ListMentors(cmd.Context(), mentorSkill, 1)
		if err != nil {
			return err
		}

		if len(page.Items) == 0 {
			fmt.Println("No mentors found.")
			return nil
		}
		for _, m := range page.Items {
			fmt.Printf("%-24s %-32s %.1f★ (%d sessions)\n", m.Name, m.Headline, m.Rating, m.Sessions)
		}
		return nil
	},
}
