package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	rootCmd.AddCommand(notificationsCmd)
}

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Manage the notification feed",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the first page of notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := authedClient(cfg)
		if err != nil {
			return err
		}

		page, err := client.ListNotifications(cmd.Context(), 1)
		if err != nil {
			return err
		}

		if len(page.Items) == 0 {
			fmt.Println("No notifications.")
			return nil
		}
		fmt.Printf("%d unread of %d total\n", page.Unread, page.Total)
		for _, n := range page.Items {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			when := time.UnixMilli(n.CreatedAt).Format("2006-01-02 15:04")
			fmt.Printf("%s %s  [%s] %s\n", marker, when, n.Type, n.Title)
		}
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := authedClient(cfg)
		if err != nil {
			return err
		}

		if err := client.MarkAllNotificationsRead(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All notifications marked read.")
		return nil
	},
}
