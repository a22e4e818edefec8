package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gothtr/gitbrowser"
)

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Manage saved website credentials",
}

var credentialSaveCmd = &cobra.Command{
	Use:   "save <url> <username> <password>",
	Short: "Save a credential",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		id, err := svc.SaveCredential(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Saved credential %s\n", id)
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list [url]",
	Short: "List credentials, optionally filtered by URL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		var (
			creds []gitbrowser.Credential
			err   error
		)
		if len(args) == 1 {
			creds, err = svc.CredentialsForURL(args[0])
		} else {
			creds, err = svc.ListCredentials()
		}
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			fmt.Println("No credentials stored.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tUSERNAME\tUPDATED")
		for _, c := range creds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.URL, c.Username, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var credentialShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Decrypt and print the password of one credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		password, err := svc.DecryptCredential(args[0])
		if err != nil {
			return err
		}
		fmt.Println(password)
		return nil
	},
}

var (
	updateUsername string
	updatePassword string
)

var credentialUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update the username or password of a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		var username, password *string
		if cmd.Flags().Changed("username") {
			username = &updateUsername
		}
		if cmd.Flags().Changed("new-password") {
			password = &updatePassword
		}
		if username == nil && password == nil {
			return fmt.Errorf("nothing to update: pass --username or --new-password")
		}
		if err := svc.UpdateCredential(args[0], username, password); err != nil {
			return err
		}
		fmt.Println("Credential updated.")
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		if err := svc.DeleteCredential(args[0]); err != nil {
			return err
		}
		fmt.Println("Credential deleted.")
		return nil
	},
}

func init() {
	credentialUpdateCmd.Flags().StringVar(&updateUsername, "username", "", "new username")
	credentialUpdateCmd.Flags().StringVar(&updatePassword, "new-password", "", "new password")

	credentialCmd.AddCommand(credentialSaveCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialShowCmd)
	credentialCmd.AddCommand(credentialUpdateCmd)
	credentialCmd.AddCommand(credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}
