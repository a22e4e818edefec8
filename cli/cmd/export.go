package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gothtr/gitbrowser/persist"
)

var exportPassword string

var exportCmd = &cobra.Command{
	Use:   "export <archive-name>",
	Short: "Export all credentials to an encrypted archive",
	Long: `Export every saved credential as a self-contained archive encrypted under
the export password. The archive is written to the local archive directory,
or to an S3 bucket when --s3-bucket is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		if exportPassword == "" {
			return fmt.Errorf("an export password is required: use --export-password")
		}
		sink, err := archiveSink()
		if err != nil {
			return err
		}
		count, err := core.Vault.ExportCredentials(exportPassword, sink, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d credentials to %s\n", count, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <archive-name>",
	Short: "Import credentials from an encrypted archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlockOrFail(); err != nil {
			return err
		}
		if exportPassword == "" {
			return fmt.Errorf("the archive's export password is required: use --export-password")
		}
		sink, err := archiveSink()
		if err != nil {
			return err
		}
		count, err := core.Vault.ImportCredentials(exportPassword, sink, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d credentials from %s\n", count, args[0])
		return nil
	},
}

// archiveSink picks the archive destination: S3 when a bucket is configured,
// the local archive directory otherwise.
func archiveSink() (persist.ArchiveSink, error) {
	if bucket := viper.GetString("archive.s3.bucket"); bucket != "" {
		return persist.NewS3ArchiveSink(persist.S3ArchiveConfig{
			Endpoint:  viper.GetString("archive.s3.endpoint"),
			Region:    viper.GetString("archive.s3.region"),
			Bucket:    bucket,
			KeyPrefix: viper.GetString("archive.s3.prefix"),
			AccessKey: viper.GetString("archive.s3.access_key_id"),
			SecretKey: viper.GetString("archive.s3.secret_access_key"),
			UseSSL:    viper.GetBool("archive.s3.use_ssl"),
		})
	}
	return persist.NewFileArchiveSink(viper.GetString("archive.dir"))
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVar(&exportPassword, "export-password", "", "password protecting the archive")
	}
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
