package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wikiaudio/internal/infrastructure/logger"
)

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <page title>",
		Short: "List audio candidates attached to a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			candidates, err := app.resolver().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Printf("no audio found for %q\n", args[0])
				return nil
			}

			for i, c := range candidates {
				fmt.Printf("%2d. %s\n", i+1, logger.SanitizeForLog(c.Filename))
				fmt.Printf("    %s\n", logger.RedactURL(c.URL))
				if license := c.LicenseMetadata["LicenseShortName"]; license != "" {
					fmt.Printf("    license: %s\n", logger.SanitizeForLog(license))
				}
			}
			return nil
		},
	}
}
