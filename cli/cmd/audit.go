package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gothtr/gitbrowser/audit"
)

var (
	auditJSONOutput   bool
	auditSince        string
	auditAction       string
	auditFailuresOnly bool
	auditLimit        int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log",
	Long: `Query the vault audit log.

Examples:
  # All events
  gitbrowser-vault audit query

  # Failed unlock attempts in the last day
  gitbrowser-vault audit query --action vault.unlock --failures-only --since 24h`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events with filters",
	RunE:  runAuditQuery,
}

func init() {
	auditQueryCmd.Flags().BoolVar(&auditJSONOutput, "json", false, "output events as JSON")
	auditQueryCmd.Flags().StringVar(&auditSince, "since", "", "only events newer than this duration (e.g. 24h)")
	auditQueryCmd.Flags().StringVar(&auditAction, "action", "", "filter by action name")
	auditQueryCmd.Flags().BoolVar(&auditFailuresOnly, "failures-only", false, "only failed events")
	auditQueryCmd.Flags().IntVar(&auditLimit, "limit", 0, "maximum number of events (0 = all)")

	auditCmd.AddCommand(auditQueryCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	logger, err := audit.NewLogger(&audit.Config{
		Enabled: true,
		Type:    audit.FileAuditType,
		Options: map[string]interface{}{
			"file_path": viper.GetString("audit.options.file_path"),
		},
	})
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer logger.Close()

	opts := audit.QueryOptions{
		Action: auditAction,
		Limit:  auditLimit,
	}
	if auditSince != "" {
		d, perr := time.ParseDuration(auditSince)
		if perr != nil {
			return fmt.Errorf("invalid --since duration: %w", perr)
		}
		since := time.Now().Add(-d)
		opts.Since = &since
	}
	if auditFailuresOnly {
		failed := false
		opts.Success = &failed
	}

	events, err := logger.Query(opts)
	if err != nil {
		return err
	}
	if auditJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("No matching audit events.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOK")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%v\n", e.Timestamp.Format(time.RFC3339), e.Action, e.Success)
	}
	return w.Flush()
}
