package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the CLI configuration file",
}

// fileConfig mirrors the .gitbrowser.yaml layout.
type fileConfig struct {
	Vault struct {
		DB string `yaml:"db"`
	} `yaml:"vault"`
	Archive struct {
		Dir string `yaml:"dir"`
		S3  struct {
			Endpoint  string `yaml:"endpoint,omitempty"`
			Region    string `yaml:"region,omitempty"`
			Bucket    string `yaml:"bucket,omitempty"`
			Prefix    string `yaml:"prefix,omitempty"`
			UseSSL    bool   `yaml:"use_ssl"`
			AccessKey string `yaml:"access_key_id,omitempty"`
			SecretKey string `yaml:"secret_access_key,omitempty"`
		} `yaml:"s3"`
	} `yaml:"archive"`
	Audit struct {
		Enabled bool   `yaml:"enabled"`
		Type    string `yaml:"type"`
		Options struct {
			FilePath string `yaml:"file_path"`
		} `yaml:"options"`
	} `yaml:"audit"`
}

func currentConfig() fileConfig {
	var cfg fileConfig
	cfg.Vault.DB = viper.GetString("vault.db")
	cfg.Archive.Dir = viper.GetString("archive.dir")
	cfg.Archive.S3.Endpoint = viper.GetString("archive.s3.endpoint")
	cfg.Archive.S3.Region = viper.GetString("archive.s3.region")
	cfg.Archive.S3.Bucket = viper.GetString("archive.s3.bucket")
	cfg.Archive.S3.Prefix = viper.GetString("archive.s3.prefix")
	cfg.Archive.S3.UseSSL = viper.GetBool("archive.s3.use_ssl")
	cfg.Audit.Enabled = viper.GetBool("audit.enabled")
	cfg.Audit.Type = viper.GetString("audit.type")
	cfg.Audit.Options.FilePath = viper.GetString("audit.options.file_path")
	return cfg
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(currentConfig())
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to $HOME/.gitbrowser.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = filepath.Join(home, ".gitbrowser.yaml")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
		out, err := yaml.Marshal(currentConfig())
		if err != nil {
			return err
		}
		if err = os.WriteFile(path, out, 0600); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
