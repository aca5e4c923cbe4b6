package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"indiflow/internal/models"
	"indiflow/internal/storage"
	"indiflow/pkg/database"
)

var (
	flowsFormat string
	flowsOutput string
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage stored flows",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFlows(func(fs *storage.FlowStorage) error {
			flows, err := fs.GetAllFlows(cmd.Context())
			if err != nil {
				return err
			}
			printFlowTable(cmd.OutOrStdout(), flows)
			return nil
		})
	},
}

var flowsShowCmd = &cobra.Command{
	Use:   "show [flow-id]",
	Short: "Print one flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFor("", flowsFormat)
		if err != nil {
			return err
		}
		return withFlows(func(fs *storage.FlowStorage) error {
			flow, err := fs.GetFlowByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return encodeFlows(cmd.OutOrStdout(), flow, format)
		})
	},
}

var flowsDeleteCmd = &cobra.Command{
	Use:   "delete [flow-id]",
	Short: "Delete a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFlows(func(fs *storage.FlowStorage) error {
			if err := fs.DeleteFlow(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

var flowsExportCmd = &cobra.Command{
	Use:   "export [flow-id...]",
	Short: "Export flows as JSON or YAML",
	Long: `Export writes the given flows, or every stored flow when no id is given, to
--output (default stdout). The format follows --format or the output file
extension.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFor(flowsOutput, flowsFormat)
		if err != nil {
			return err
		}
		return withFlows(func(fs *storage.FlowStorage) error {
			ctx := cmd.Context()
			var flows []models.IndiFlow
			if len(args) == 0 {
				if flows, err = fs.GetAllFlows(ctx); err != nil {
					return err
				}
			}
			for _, id := range args {
				flow, err := fs.GetFlowByID(ctx, id)
				if err != nil {
					return err
				}
				flows = append(flows, *flow)
			}

			var w io.Writer = cmd.OutOrStdout()
			if flowsOutput != "" {
				f, err := os.Create(flowsOutput)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := encodeFlows(w, flows, format); err != nil {
				return err
			}
			logger.Info("flows exported", zap.Int("count", len(flows)), zap.String("format", format))
			return nil
		})
	},
}

var flowsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import flows from a JSON or YAML file",
	Long: `Import stores every flow in the file. A flow whose id already exists replaces
the stored one; flows without an id get a new one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFor(args[0], flowsFormat)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		flows, err := decodeFlows(f, format)
		if err != nil {
			return err
		}
		return withFlows(func(fs *storage.FlowStorage) error {
			now := time.Now()
			for _, flow := range prepareImport(flows, now) {
				if err := fs.PutFlow(cmd.Context(), flow); err != nil {
					return fmt.Errorf("import %q: %w", flow.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s %s\n", flow.ID, flow.Name)
			}
			return nil
		})
	},
}

func init() {
	flowsCmd.PersistentFlags().StringVar(&flowsFormat, "format", "", "json or yaml")
	flowsExportCmd.Flags().StringVarP(&flowsOutput, "output", "o", "", "output file (default stdout)")
	flowsCmd.AddCommand(flowsListCmd, flowsShowCmd, flowsDeleteCmd, flowsExportCmd, flowsImportCmd)
}

func withFlows(fn func(*storage.FlowStorage) error) error {
	store, err := database.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	return fn(storage.New(store, logger))
}

// prepareImport assigns ids and timestamps missing from imported flows.
func prepareImport(flows []models.IndiFlow, now time.Time) []models.IndiFlow {
	out := make([]models.IndiFlow, len(flows))
	for i, flow := range flows {
		if flow.ID == "" {
			flow.ID = uuid.NewString()
		}
		if flow.CreatedAt.IsZero() {
			flow.CreatedAt = now
		}
		if flow.UpdatedAt.IsZero() {
			flow.UpdatedAt = flow.CreatedAt
		}
		out[i] = flow
	}
	return out
}

func printFlowTable(w io.Writer, flows []models.IndiFlow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTEPS\tDOMAIN\tSCHEDULE\tLAST RUN")
	for _, f := range flows {
		last := "-"
		if f.LastRun != nil {
			status := "failed"
			if f.LastRun.Success {
				status = "passed"
			}
			last = fmt.Sprintf("%s %s", status, f.LastRun.At.Format(time.RFC3339))
		}
		schedule := f.Schedule
		if schedule == "" {
			schedule = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", f.ID, f.Name, len(f.Steps), f.Domain, schedule, last)
	}
	tw.Flush()
}
