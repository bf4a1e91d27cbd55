package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wikiaudio/internal/adapter/storage/sqlite"
	"wikiaudio/internal/infrastructure/logger"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent dispatch history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			if app.cfg.DataDir == "" {
				return fmt.Errorf("history requires DATA_DIR to be set")
			}

			ledger, err := sqlite.NewLedger(app.cfg.DataDir)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			records, err := ledger.Recent(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no dispatches recorded")
				return nil
			}

			for _, r := range records {
				line := fmt.Sprintf("%s  %-8s %-7s %s",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Status,
					logger.SanitizeForLog(r.PageTitle))
				if r.Status == "failed" && r.ErrorKind != "" {
					line += fmt.Sprintf(" (%s)", r.ErrorKind)
				} else if r.Filename != "" {
					line += " -> " + logger.SanitizeForLog(r.Filename)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries to show")
	return cmd
}
