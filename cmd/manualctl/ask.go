package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a troubleshooting question from the indexed manuals",
	Long: `Ask runs the full query pipeline and prints the grounded answer with its
citations. With --stream the answer is printed as it is generated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	manualID, _ := cmd.Flags().GetString("manual-id")
	tenantID, _ := cmd.Flags().GetString("tenant-id")
	stream, _ := cmd.Flags().GetBool("stream")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	req := domain.QueryRequest{Query: strings.Join(args, " "), ManualID: manualID, TenantID: tenantID}
	out := cmd.OutOrStdout()

	if stream && !jsonOutput {
		return app.QueryUC.AnswerStream(cmd.Context(), req, func(ev domain.StreamEvent) error {
			switch ev.Type {
			case domain.StreamEventContent:
				_, err := fmt.Fprint(out, ev.Content)
				return err
			case domain.StreamEventMetadata:
				fmt.Fprintln(out)
				printCitations(cmd, ev.Response)
			}
			return nil
		})
	}

	resp, err := app.QueryUC.Answer(cmd.Context(), req)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintln(out, resp.Answer)
	printCitations(cmd, resp)
	return nil
}

func printCitations(cmd *cobra.Command, resp *domain.AnswerResponse) {
	if resp == nil {
		return
	}
	out := cmd.OutOrStdout()
	if resp.GateReason != "" {
		fmt.Fprintf(out, "\n[%s]\n", resp.GateReason)
	}
	if len(resp.Citations) > 0 {
		fmt.Fprintf(out, "\nCitations: %s\n", strings.Join(resp.Citations, ", "))
	}
	for _, th := range resp.Thumbnails {
		fmt.Fprintf(out, "  %s  %s\n", th.Title, th.URL)
	}
}

func init() {
	askCmd.Flags().String("manual-id", "", "restrict retrieval to one manual")
	askCmd.Flags().String("tenant-id", "", "restrict retrieval to one tenant")
	askCmd.Flags().Bool("stream", false, "print the answer while it is generated")
	askCmd.Flags().Bool("json", false, "print the full response as JSON")

	rootCmd.AddCommand(askCmd)
}
