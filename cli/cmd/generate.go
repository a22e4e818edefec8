package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gothtr/gitbrowser"
)

var genOpts = gitbrowser.DefaultPasswordOptions()

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random password",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := svc.GeneratePassword(genOpts)
		if err != nil {
			return err
		}
		fmt.Println(password)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&genOpts.Length, "length", "l", gitbrowser.DefaultPasswordLength, "password length")
	generateCmd.Flags().BoolVar(&genOpts.Lowercase, "lowercase", true, "include lowercase letters")
	generateCmd.Flags().BoolVar(&genOpts.Uppercase, "uppercase", true, "include uppercase letters")
	generateCmd.Flags().BoolVar(&genOpts.Digits, "digits", true, "include digits")
	generateCmd.Flags().BoolVar(&genOpts.Symbols, "symbols", true, "include symbols")
	rootCmd.AddCommand(generateCmd)
}
