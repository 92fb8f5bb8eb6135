package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mentorly/internal/models"
	"mentorly/internal/ws"
)

func init() {
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(sendCmd)
}

func (c *Config) socketURL() string {
	if c.Default.SocketURL != "" {
		return c.Default.SocketURL
	}
	return "ws://localhost:8080/ws"
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := authedClient(cfg)
		if err != nil {
			return err
		}

		page, err := client.ListConversations(cmd.Context(), 1)
		if err != nil {
			return err
		}

		if len(page.Items) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, conv := range page.Items {
			badge := " "
			if conv.Unread > 0 {
				badge = fmt.Sprintf("%d", conv.Unread)
			}
			when := ""
			if conv.LastAt > 0 {
				when = time.UnixMilli(conv.LastAt).Format("Jan 2 15:04")
			}
			fmt.Printf("%-2s %-24s %-40s %s\n", badge, conv.Participant.Name, conv.LastMessage, when)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <peer-id> <message...>",
	Short: "Send a chat message",
	Long:  "Send a text message to a peer over the realtime channel.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.Token == "" {
			return fmt.Errorf("not logged in, run 'mentorctl login <email>' first")
		}

		peerID := args[0]
		content := strings.TrimSpace(strings.Join(args[1:], " "))
		if content == "" {
			return models.ErrEmptyMessage
		}

		sock := ws.New(ws.Config{URL: cfg.socketURL(), Token: cfg.Auth.Token})
		if err := sock.Connect(cmd.Context()); err != nil {
			return err
		}
		defer func() { _ = sock.Close() }()

		err = sock.Emit(ws.EventChatSend, ws.ChatSend{
			ReceiverID: peerID,
			Kind:       models.MessageKindText,
			Content:    content,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Sent to %s.\n", peerID)
		return nil
	},
}
