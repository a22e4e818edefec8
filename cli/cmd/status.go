package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gothtr/gitbrowser"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  "Display the vault location, lock state, and per-provider authentication status.",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	status, err := svc.Status()
	if err != nil {
		return err
	}

	fmt.Println("Vault Status")
	fmt.Println("============")
	fmt.Printf("Database: %s\n", viper.GetString("vault.db"))
	fmt.Printf("Initialized: %v\n", status.Initialized)
	fmt.Printf("Unlocked: %v\n", status.Unlocked)

	for _, store := range []*gitbrowser.ProviderStore{core.GitHub, core.AIKeys} {
		auth, err := store.IsAuthenticated()
		if err != nil {
			fmt.Printf("Provider %s: ERROR - %v\n", store.Name(), err)
			continue
		}
		fmt.Printf("Provider %s: authenticated=%v (key: %s)\n", store.Name(), auth, store.KeyProvenance())
	}
	return nil
}
