package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wikiaudio/config"
	"wikiaudio/internal/adapter/ffmpeg"
	"wikiaudio/internal/adapter/mediawiki"
	"wikiaudio/internal/adapter/sink"
	"wikiaudio/internal/adapter/storage/sqlite"
	"wikiaudio/internal/port"
	"wikiaudio/internal/service"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wikiaudio",
		Short:         "Discover and download pronunciation audio from wiki pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// appContext lazily wires the pipeline from environment config.
type appContext struct {
	cfg    *config.Config
	ledger *sqlite.Ledger
}

func newAppContext() (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &appContext{cfg: cfg}, nil
}

func (a *appContext) httpClient() *http.Client {
	return &http.Client{Timeout: a.cfg.HTTPTimeout}
}

func (a *appContext) resolver() port.AudioResolver {
	return mediawiki.NewClient(a.cfg.APIBaseURL, a.httpClient())
}

// coordinator builds the full conversion pipeline. The session loop runs
// until ctx is canceled.
func (a *appContext) coordinator(ctx context.Context) (*service.Coordinator, error) {
	engine := ffmpeg.NewEngine(
		a.cfg.FFmpegPath,
		a.cfg.FFprobePath,
		filepath.Join(os.TempDir(), "wikiaudio-engine"),
	)

	timeouts := service.DefaultTimeouts()
	bus := service.NewCompletionBus()
	session := service.NewEngineSession(engine, a.httpClient(), bus, timeouts)
	session.Start(ctx)

	diskSink := sink.NewDisk(a.cfg.OutputDir, a.httpClient())

	var ledger port.DispatchLedger
	if a.cfg.DataDir != "" {
		l, err := sqlite.NewLedger(a.cfg.DataDir)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		ledger = l
	}

	return service.NewCoordinator(session, diskSink, bus, ledger, timeouts), nil
}

func (a *appContext) close() {
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
}
