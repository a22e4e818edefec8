package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage named secrets",
	Long: `Store, read, and delete named secrets. A secret saved while the vault is
unlocked is sealed under the master key and needs the master password to read
back; one saved while locked uses the built-in fallback key.`,
}

var secretUnlockFirst bool

var secretSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if secretUnlockFirst {
			if err := unlockOrFail(); err != nil {
				return err
			}
		}
		if err := svc.SecretStore(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Secret stored.")
		return nil
	},
}

var secretGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if secretUnlockFirst {
			if err := unlockOrFail(); err != nil {
				return err
			}
		}
		res, err := svc.SecretGet(args[0])
		if err != nil {
			return err
		}
		if res.Value == nil {
			fmt.Println("(not set)")
			return nil
		}
		fmt.Println(*res.Value)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.SecretDelete(args[0]); err != nil {
			return err
		}
		fmt.Println("Secret deleted.")
		return nil
	},
}

func init() {
	secretCmd.PersistentFlags().BoolVar(&secretUnlockFirst, "unlock", false, "unlock the vault first so the secret uses the master key")

	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretGetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}
