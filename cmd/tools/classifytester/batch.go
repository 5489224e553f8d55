package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
)

var concurrencyFlag int

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Classify every non-empty line of a file (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		lines, err := readLines(in)
		if err != nil {
			return err
		}

		svc, log, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer svc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
		defer cancel()

		results, err := runBatch(ctx, svc.Pipeline, lines, sessionFlag, concurrencyFlag)
		if err != nil {
			return err
		}
		for _, r := range results {
			if err := printJSON(cmd.OutOrStdout(), r); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&concurrencyFlag, "concurrency", "c", 4, "messages classified in parallel")
}

type handler interface {
	Handle(ctx context.Context, msg wellbeing.InboundMessage) (wellbeing.Reply, error)
}

type batchResult struct {
	Line  int              `json:"line"`
	Text  string           `json:"text"`
	Reply *wellbeing.Reply `json:"reply,omitempty"`
	Error string           `json:"error,omitempty"`
}

type numberedLine struct {
	n    int
	text string
}

func readLines(r io.Reader) ([]numberedLine, error) {
	var lines []numberedLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			lines = append(lines, numberedLine{n: n, text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// runBatch classifies lines with bounded concurrency. Results keep input
// order; per-line failures are reported inline rather than aborting the run.
func runBatch(ctx context.Context, h handler, lines []numberedLine, sessionID string, concurrency int) ([]batchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]batchResult, len(lines))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, line := range lines {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res := batchResult{Line: line.n, Text: line.text}
			reply, err := h.Handle(egCtx, wellbeing.InboundMessage{Text: line.text, SessionID: sessionID})
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Reply = &reply
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
