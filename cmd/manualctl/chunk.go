package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file.md>",
	Short: "Split a page-tagged manual into chunks without storing them",
	Long: `Chunk runs the chunker over a page-tagged markdown file and prints the
resulting chunks. Nothing is embedded or stored; use it to check page headers
and size limits before ingesting.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func runChunk(cmd *cobra.Command, args []string) error {
	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manual: %w", err)
	}
	manualID, _ := cmd.Flags().GetString("manual-id")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	chunker, err := bootstrap.NewChunker(config.Load().Chunking())
	if err != nil {
		return err
	}
	chunks := chunker.Split(domain.ManualDocument{ManualID: manualID, Version: "local", Body: string(body)})

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}

	fmt.Fprintf(out, "%-5s  %-7s  %-30s  %s\n", "Page", "Chars", "Section", "Preview")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, ch := range chunks {
		fmt.Fprintf(out, "%-5d  %-7d  %-30s  %s\n",
			ch.PageStart, len([]rune(ch.Content)), clip(strings.Join(ch.SectionPath, " > "), 30), clip(ch.Content, 40))
	}
	fmt.Fprintf(out, "\n%d chunk(s)\n", len(chunks))
	return nil
}

func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	chunkCmd.Flags().String("manual-id", "local", "manual id stamped on the chunks")
	chunkCmd.Flags().Bool("json", false, "print chunks as JSON")

	rootCmd.AddCommand(chunkCmd)
}
