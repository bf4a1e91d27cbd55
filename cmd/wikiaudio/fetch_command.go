package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/infrastructure/logger"
	"wikiaudio/internal/service"
)

func newFetchCommand() *cobra.Command {
	var (
		convert          bool
		all              bool
		index            int
		fallbackOriginal bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <page title>",
		Short: "Download audio from a page, optionally converted to normalized WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			defer app.close()

			pageTitle := args[0]
			candidates, err := app.resolver().Resolve(cmd.Context(), pageTitle)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Printf("no audio found for %q\n", pageTitle)
				return nil
			}

			if !all {
				if index < 1 || index > len(candidates) {
					return fmt.Errorf("index %d out of range (page has %d candidates)", index, len(candidates))
				}
				candidates = candidates[index-1 : index]
			}

			mode := domain.ModeOriginal
			if convert {
				mode = domain.ModeConvert
			}
			reqs := make([]domain.DownloadRequest, 0, len(candidates))
			for _, c := range candidates {
				reqs = append(reqs, domain.DownloadRequest{
					PageTitle:        pageTitle,
					SourceURL:        c.URL,
					OriginalFilename: c.Filename,
					Mode:             mode,
				})
			}

			coord, err := app.coordinator(cmd.Context())
			if err != nil {
				return err
			}

			report := coord.DispatchBatch(cmd.Context(), reqs)

			// Per-item fallback to the original file is caller policy, applied
			// here after observing the typed failure, never by the coordinator.
			if fallbackOriginal && mode == domain.ModeConvert && report.Failed > 0 {
				report = retryFailedAsOriginal(cmd.Context(), coord, report)
			}

			printReport(report)
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", report.Failed, report.Attempted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&convert, "convert", false, "transcode to normalized WAV (mono, 48 kHz, 16-bit PCM)")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every candidate on the page")
	cmd.Flags().IntVar(&index, "index", 1, "candidate to fetch when --all is not set (1-based)")
	cmd.Flags().BoolVar(&fallbackOriginal, "fallback-original", false,
		"download the original file for items whose conversion failed")

	return cmd
}

// retryFailedAsOriginal re-dispatches failed convert items in original mode
// and folds the outcomes back into the report.
func retryFailedAsOriginal(ctx context.Context, coord *service.Coordinator, report domain.BatchReport) domain.BatchReport {
	for i, item := range report.Items {
		if item.Err == nil {
			continue
		}
		req := item.Request
		req.Mode = domain.ModeOriginal

		filename, err := coord.Dispatch(ctx, req)
		if err != nil {
			logger.Warn.Printf("fallback for %s failed too: %v", logger.SanitizeForLog(req.OriginalFilename), err)
			continue
		}
		report.Items[i] = domain.ItemOutcome{Request: req, Filename: filename}
		report.Failed--
		report.Succeeded++
	}
	return report
}

func printReport(report domain.BatchReport) {
	for _, item := range report.Items {
		if item.Err != nil {
			fmt.Printf("failed  %s (%s)\n", logger.SanitizeForLog(item.Request.OriginalFilename), domain.KindOf(item.Err))
			continue
		}
		fmt.Printf("saved   %s\n", logger.SanitizeForLog(item.Filename))
	}
	fmt.Printf("%d/%d downloaded\n", report.Succeeded, report.Attempted)
}
