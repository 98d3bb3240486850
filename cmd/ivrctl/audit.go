package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"ivr/internal/config"
	"ivr/internal/storage"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the stored call audit",
	}
	cmd.PersistentFlags().String("db", "", "Audit database (default $SQLITE_DB_PATH)")
	cmd.PersistentFlags().Duration("since", 24*time.Hour, "How far back to look")

	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditSummaryCmd())
	return cmd
}

func openAudit(cmd *cobra.Command) (*storage.AuditRepository, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = config.Load().SQLiteDBPath
	}
	return storage.NewAuditRepository(path)
}

func sinceFlag(cmd *cobra.Command) time.Time {
	d, _ := cmd.Flags().GetDuration("since")
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-d)
}

func auditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAudit(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			action, _ := cmd.Flags().GetString("action")
			limit, _ := cmd.Flags().GetInt("limit")
			calls, err := repo.ListCalls(cmd.Context(), storage.AuditFilter{
				Action: action,
				Since:  sinceFlag(cmd),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			data := pterm.TableData{
				{"Time", "Action", "Code", "Count", "Retried", "Period", "Ms", "Request"},
			}
			for _, c := range calls {
				data = append(data, []string{
					c.OccurredAt.Local().Format(time.DateTime),
					c.Action,
					c.Code,
					strconv.Itoa(c.Count),
					strconv.FormatBool(c.Retried),
					c.Period,
					strconv.FormatInt(c.DurationMs, 10),
					c.RequestID,
				})
			}
			return renderTable(cmd, data)
		},
	}
	cmd.Flags().StringP("action", "a", "", "Only this action")
	cmd.Flags().IntP("limit", "n", 50, "Maximum rows")
	return cmd
}

func auditSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize calls per action",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAudit(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			rows, err := repo.Summary(cmd.Context(), sinceFlag(cmd))
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No calls recorded.")
				return nil
			}

			data := pterm.TableData{{"Action", "Calls", "Retried", "Avg ms"}}
			for _, s := range rows {
				data = append(data, []string{
					s.Action,
					strconv.FormatInt(s.Calls, 10),
					strconv.FormatInt(s.Retried, 10),
					fmt.Sprintf("%.0f", s.AvgDuration),
				})
			}
			return renderTable(cmd, data)
		},
	}
}

func renderTable(cmd *cobra.Command, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
	return err
}
