package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gothtr/gitbrowser"
	"github.com/gothtr/gitbrowser/audit"
)

var (
	cfgFile string
	core    *gitbrowser.Core
	svc     gitbrowser.Service
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gitbrowser-vault",
	Short: "Manage the gitbrowser encrypted credential vault",
	Long: `Command-line access to the gitbrowser credential vault: saved website
credentials, provider tokens, and named secrets, all encrypted at rest with
AES-256-GCM under a master-password-derived key.`,
	PersistentPreRunE: initializeCore,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if core != nil {
			return core.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gitbrowser.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the vault database file")
	rootCmd.PersistentFlags().String("password", "", "master password (or use GITBROWSER_PASSWORD env var)")

	bindFlagOrPanic("vault.db", "db")
	bindFlagOrPanic("vault.password", "password")

	rootCmd.PersistentFlags().Bool("audit", false, "enable audit logging")
	rootCmd.PersistentFlags().String("audit-file", "", "audit log file path")

	bindFlagOrPanic("audit.enabled", "audit")
	bindFlagOrPanic("audit.options.file_path", "audit-file")

	// Archive destination flags, used by export and import.
	rootCmd.PersistentFlags().String("archive-dir", "", "local directory for export archives")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint for export archives")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().String("s3-prefix", "", "S3 key prefix")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.PersistentFlags().Bool("s3-use-ssl", true, "use SSL for S3 connections")

	bindFlagOrPanic("archive.dir", "archive-dir")
	bindFlagOrPanic("archive.s3.endpoint", "s3-endpoint")
	bindFlagOrPanic("archive.s3.region", "s3-region")
	bindFlagOrPanic("archive.s3.bucket", "s3-bucket")
	bindFlagOrPanic("archive.s3.prefix", "s3-prefix")
	bindFlagOrPanic("archive.s3.access_key_id", "s3-access-key")
	bindFlagOrPanic("archive.s3.secret_access_key", "s3-secret-key")
	bindFlagOrPanic("archive.s3.use_ssl", "s3-use-ssl")
}

func bindFlagOrPanic(configKey, flagName string) {
	flag := rootCmd.PersistentFlags().Lookup(flagName)
	if flag == nil {
		panic(fmt.Sprintf("unknown flag %s", flagName))
	}
	bindOrPanic(configKey, flag)
}

func bindOrPanic(configKey string, flag *pflag.Flag) {
	if err := viper.BindPFlag(configKey, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s: %v", flag.Name, err))
	}
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gitbrowser")
	}

	viper.SetEnvPrefix("GITBROWSER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// No config file is fine; defaults and env vars apply.
	}
}

func setDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetDefault("vault.db", filepath.Join(home, ".gitbrowser", "vault.db"))
	viper.SetDefault("archive.dir", filepath.Join(home, ".gitbrowser", "archives"))
	viper.SetDefault("archive.s3.region", "us-east-1")
	viper.SetDefault("archive.s3.use_ssl", true)

	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.type", "file")
	viper.SetDefault("audit.options.file_path", filepath.Join(home, ".gitbrowser", "audit.log"))
}

func initializeCore(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
		return nil
	}
	if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
		return nil
	}

	dbPath := viper.GetString("vault.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	options := gitbrowser.Options{
		DBPath:           dbPath,
		EnvPassphraseVar: "GITBROWSER_PASSWORD",
	}
	if viper.GetBool("audit.enabled") {
		options.Audit = &audit.Config{
			Enabled: true,
			Type:    audit.ConfigType(viper.GetString("audit.type")),
			Options: map[string]interface{}{
				"file_path": viper.GetString("audit.options.file_path"),
			},
		}
	}

	var err error
	core, err = gitbrowser.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	svc = gitbrowser.NewService(core)
	return nil
}

// unlockOrFail unlocks the vault from --password or GITBROWSER_PASSWORD,
// for commands that need the master key.
func unlockOrFail() error {
	password := viper.GetString("vault.password")
	if password == "" {
		password = os.Getenv("GITBROWSER_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("master password is required: use --password or GITBROWSER_PASSWORD")
	}
	res, err := svc.Unlock(password)
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("wrong master password")
	}
	if res.RekeyError != "" {
		fmt.Fprintf(os.Stderr, "Warning: provider rekey incomplete: %s\n", res.RekeyError)
	}
	return nil
}
