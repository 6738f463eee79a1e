package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/insightd/internal/http"
	"github.com/fyrsmithlabs/insightd/internal/insight"
)

func newActionsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "actions <conversation-id>",
		Short: "List today's action items of a conversation",
		Long: `List the action items extracted from the recent messages of a conversation.

Examples:
  # List action items
  insightctl actions conv-42

  # Recompute instead of using today's cached result
  insightctl actions --refresh conv-42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.ListResponse[insight.ExtractedAction]
			if err := call(cmd.Context(), "GET", conversationPath(args[0], "actions", refresh), nil, &resp); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resp, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "TITLE\tSENDER\tASSIGNEE\tDUE\tCONFIDENCE\tTIME")
				for _, a := range resp.Items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
						a.Title, a.SenderName, dash(a.Assignee), dash(a.DueHint), a.Confidence, formatMillis(a.Timestamp))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass today's cached result")
	return cmd
}

func newDecisionsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "decisions <conversation-id>",
		Short: "List today's decisions of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.ListResponse[insight.ExtractedDecision]
			if err := call(cmd.Context(), "GET", conversationPath(args[0], "decisions", refresh), nil, &resp); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resp, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "DECISION\tSENDER\tCONFIDENCE\tTIME")
				for _, d := range resp.Items {
					fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", d.Content, d.SenderName, d.Confidence, formatMillis(d.Timestamp))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass today's cached result")
	return cmd
}

func newPrioritiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priorities <conversation-id>",
		Short: "List the urgent and high priority messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.ListResponse[insight.PriorityMessage]
			if err := call(cmd.Context(), "GET", conversationPath(args[0], "priorities", false), nil, &resp); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resp, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "LEVEL\tSCORE\tSENDER\tTEXT")
				for _, m := range resp.Items {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", m.Priority.Level, m.Priority.Score, m.SenderName, truncate(m.Text, 60))
				}
			})
		},
	}
}

func newPriorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priority [text|-]",
		Short: "Score the priority of a message",
		Long: `Score the priority of a single message text.

Examples:
  # Score an argument
  insightctl priority "URGENT: prod is down"

  # Score from stdin
  echo "can you check this asap?" | insightctl priority -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			var result insight.PriorityResult
			if err := call(cmd.Context(), "POST", "/api/v1/priority", httpapi.ScoreRequest{Text: text}, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), result, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Level:\t%s\n", result.Level)
				fmt.Fprintf(w, "Score:\t%d\n", result.Score)
				for _, r := range result.Reasons {
					fmt.Fprintf(w, "\t- %s\n", r)
				}
			})
		},
	}
}

func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <conversation-id> <actions|decisions>",
		Short: "Drop today's cached result of a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/conversations/%s/cache/%s", url.PathEscape(args[0]), url.PathEscape(args[1]))
			if err := call(cmd.Context(), "DELETE", path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s of %s\n", args[1], args[0])
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check insightd server health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.HealthResponse
			if err := call(cmd.Context(), "GET", "/health", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", resp.Status)
			fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", serverURL)
			return nil
		},
	}
}

func conversationPath(id, category string, refresh bool) string {
	path := fmt.Sprintf("/api/v1/conversations/%s/%s", url.PathEscape(id), category)
	if refresh {
		path += "?refresh=true"
	}
	return path
}

// render prints v as JSON with --json, otherwise as a table.
func render(out io.Writer, v any, table func(*tabwriter.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("no text to score")
	}
	return text, nil
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

