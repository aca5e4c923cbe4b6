package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"indiflow/internal/browser"
	"indiflow/internal/models"
	"indiflow/internal/storage"
	"indiflow/pkg/database"
)

var errFlowFailed = errors.New("flow failed")

var replayFormat string

var replayCmd = &cobra.Command{
	Use:   "replay [flow-id]",
	Short: "Replay a stored flow in Chrome and report the result",
	Long: `Replay opens the start URL of the flow, plays every step and prints a step
report. The command fails when any step fails. The flow's last run is
updated like for any other playback.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flow, err := lookupFlow(ctx, args[0])
		if err != nil {
			return err
		}

		b, err := browser.Launch(ctx, cfg.Chrome, flow.StartURL, logger, browser.WithPollInterval(cfg.Recorder.EventPollInterval))
		if err != nil {
			return err
		}
		defer b.Close()

		eng, closeEngine, err := openEngine(ctx, b.Page, b.Page)
		if err != nil {
			return err
		}
		defer closeEngine()

		res, err := eng.PlayFlowByID(ctx, flow.ID)
		if err != nil {
			return err
		}
		if replayFormat != "" {
			format, err := formatFor("", replayFormat)
			if err != nil {
				return err
			}
			if err := encodeFlows(cmd.OutOrStdout(), res, format); err != nil {
				return err
			}
		} else {
			printReport(cmd.OutOrStdout(), res)
		}
		if !res.Success {
			return fmt.Errorf("%s: %w", flow.Name, errFlowFailed)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFormat, "format", "", "print the full result as json or yaml instead of a report")
}

func lookupFlow(ctx context.Context, id string) (*models.IndiFlow, error) {
	store, err := database.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}()
	return storage.New(store, logger).GetFlowByID(ctx, id)
}

func printReport(w io.Writer, res *models.FlowPlaybackResult) {
	for i, r := range res.Results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s %2d %-9s %5dms", mark, i+1, r.Step.Action.Type(), r.Duration)
		if r.MatchedStrategy != "" {
			fmt.Fprintf(w, "  via %s", r.MatchedStrategy)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  %s", r.Error)
		}
		fmt.Fprintln(w)
	}
	status := "PASSED"
	switch {
	case res.Stopped:
		status = "STOPPED"
	case !res.Success:
		status = "FAILED"
	}
	fmt.Fprintf(w, "%s %s: %d/%d steps in %s\n", status, res.FlowName, res.PassedCount(), len(res.Results),
		(time.Duration(res.Duration) * time.Millisecond).String())
}
