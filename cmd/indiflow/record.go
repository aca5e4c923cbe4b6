package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"indiflow/internal/browser"
	"indiflow/internal/models"
)

var (
	recordDuration time.Duration
	recordHeadless bool
)

var recordCmd = &cobra.Command{
	Use:   "record [url] [name]",
	Short: "Open a browser and record a new flow",
	Long: `Record opens url in a visible Chrome window and records every interaction and
the API calls it triggers. Press Ctrl-C (or wait for --duration) to stop;
the flow is then saved under name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chromeCfg := cfg.Chrome
		chromeCfg.HeadlessMode = recordHeadless

		// the browser and engine outlive the interrupt so the flow can be saved
		bg := context.Background()
		b, err := browser.Launch(bg, chromeCfg, args[0], logger, browser.WithPollInterval(cfg.Recorder.EventPollInterval))
		if err != nil {
			return err
		}
		defer b.Close()

		eng, closeEngine, err := openEngine(bg, b.Page, b.Page)
		if err != nil {
			return err
		}
		defer closeEngine()

		if err := b.Page.WatchNetwork(bg, func(call models.NetworkCall) { eng.AddAPICall(call) }); err != nil {
			logger.Warn("network capture unavailable", zap.Error(err))
		}
		rs, err := eng.StartRecording(bg, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recording %q on %s, press Ctrl-C to finish\n", rs.FlowName, rs.StartURL)

		wait := cmd.Context()
		if recordDuration > 0 {
			var cancel context.CancelFunc
			wait, cancel = context.WithTimeout(wait, recordDuration)
			defer cancel()
		}
		<-wait.Done()

		_, flow, err := eng.StopRecording(bg, true)
		if err != nil {
			return err
		}
		if flow == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing recorded")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved flow %s with %d steps\n", flow.ID, len(flow.Steps))
		return nil
	},
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "stop recording after this long")
	recordCmd.Flags().BoolVar(&recordHeadless, "headless", false, "record without a visible window")
}
