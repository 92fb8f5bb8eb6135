package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mentorly/internal/api"
	"mentorly/internal/session"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session token",
	Long:  "Authenticate against the platform. The password is read from the MENTORLY_PASSWORD environment variable.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("MENTORLY_PASSWORD")
		if password == "" {
			return fmt.Errorf("set MENTORLY_PASSWORD before logging in")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := api.New(cfg.apiURL())
		resp, err := client.Login(cmd.Context(), api.LoginRequest{Email: args[0], Password: password})
		if err != nil {
			return err
		}
		if resp.Token == "" {
			return fmt.Errorf("server returned no session token")
		}

		claims, err := session.ParseClaims(resp.Token)
		if err != nil {
			return err
		}

		cfg.Auth.Token = resp.Token
		cfg.Auth.UserID = claims.Subject
		cfg.Auth.Name = claims.Name
		if err := saveConfig(cfg); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s (%s)\n", claims.Name, claims.Subject)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.Token == "" {
			fmt.Println("Not logged in. Run 'mentorctl login <email>'.")
			return nil
		}
		fmt.Printf("%s (%s)\n", cfg.Auth.Name, cfg.Auth.UserID)
		return nil
	},
}

// authedClient builds an API client carrying the stored session token.
func authedClient(cfg *Config) (*api.Client, error) {
	if cfg.Auth.Token == "" {
		return nil, fmt.Errorf("not logged in, run 'mentorctl login <email>' first")
	}
	return api.New(cfg.apiURL(), api.WithToken(cfg.Auth.Token)), nil
}
