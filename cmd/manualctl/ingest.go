package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.md>",
	Short: "Chunk, embed and store one manual",
	Long: `Ingest saves a page-tagged markdown file to object storage and processes
it in-process: chunks are embedded and replace the manual's previous chunks
in the configured chunk store.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	manualID, _ := cmd.Flags().GetString("manual-id")
	tenantID, _ := cmd.Flags().GetString("tenant-id")
	version, _ := cmd.Flags().GetString("version")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open manual: %w", err)
	}
	defer f.Close()

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	event, err := app.IngestUC.Upload(cmd.Context(), manualID, tenantID, version, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %s (%s) from %s\n", event.ManualID, event.Version, event.StorageKey)
	return nil
}

func init() {
	ingestCmd.Flags().String("manual-id", "", "manual id (required)")
	ingestCmd.Flags().String("tenant-id", "", "tenant that owns the manual")
	ingestCmd.Flags().String("version", "v1", "manual version label")
	_ = ingestCmd.MarkFlagRequired("manual-id")

	rootCmd.AddCommand(ingestCmd)
}
