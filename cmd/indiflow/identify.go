package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"indiflow/internal/engine"
	"indiflow/internal/storage"
	"indiflow/pkg/htmldom"
)

var (
	identifyURL    string
	identifyFormat string
)

var identifyCmd = &cobra.Command{
	Use:   "identify [html-file] [css-selector]",
	Short: "Print the fingerprint of an element in a local HTML file",
	Long: `Identify parses an HTML file, selects the first element matching the CSS
selector and prints the locators that would be recorded for it, best first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFor("", identifyFormat)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		url := identifyURL
		if url == "" {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			url = "file://" + filepath.ToSlash(abs)
		}
		doc, err := htmldom.Parse(f, url)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		page := htmldom.NewPage(doc)
		eng := engine.New(cmd.Context(), page, nil, storage.NewMemoryKV(), cfg, logger)
		defer eng.Close()
		fp, err := eng.Identify(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		return encodeFlows(cmd.OutOrStdout(), fp, format)
	},
}

func init() {
	identifyCmd.Flags().StringVar(&identifyURL, "url", "", "document URL (default file:// path of the input)")
	identifyCmd.Flags().StringVar(&identifyFormat, "format", "", "json or yaml")
}
