package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gothtr/gitbrowser"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage provider tokens and API keys",
}

var (
	tokenLogin  string
	tokenAvatar string
)

var githubLoginCmd = &cobra.Command{
	Use:   "github-login <token>",
	Short: "Store a GitHub OAuth token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := core.GitHub.Store(gitbrowser.DefaultSlot, args[0], tokenLogin, tokenAvatar); err != nil {
			return err
		}
		fmt.Println("GitHub token stored.")
		return nil
	},
}

var githubLogoutCmd = &cobra.Command{
	Use:   "github-logout",
	Short: "Remove the stored GitHub token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := core.GitHub.Clear(); err != nil {
			return err
		}
		fmt.Println("GitHub token removed.")
		return nil
	},
}

var aiKeySetCmd = &cobra.Command{
	Use:   "ai-key-set <provider> <key>",
	Short: "Store an AI provider API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := core.AIKeys.Store(args[0], args[1], "", ""); err != nil {
			return err
		}
		fmt.Printf("API key for %s stored.\n", args[0])
		return nil
	},
}

var aiKeyListCmd = &cobra.Command{
	Use:   "ai-key-list",
	Short: "List AI providers with stored keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		slots, err := core.AIKeys.Slots()
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			fmt.Println("No API keys stored.")
			return nil
		}
		for _, slot := range slots {
			fmt.Println(slot)
		}
		return nil
	},
}

func init() {
	githubLoginCmd.Flags().StringVar(&tokenLogin, "login", "", "account login to display")
	githubLoginCmd.Flags().StringVar(&tokenAvatar, "avatar-url", "", "account avatar URL")

	providerCmd.AddCommand(githubLoginCmd)
	providerCmd.AddCommand(githubLogoutCmd)
	providerCmd.AddCommand(aiKeySetCmd)
	providerCmd.AddCommand(aiKeyListCmd)
	rootCmd.AddCommand(providerCmd)
}
