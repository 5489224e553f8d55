package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mindcare-ai/mindcare/backend/internal/analysis/risk"
	"github.com/mindcare-ai/mindcare/backend/internal/config"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
	"github.com/mindcare-ai/mindcare/backend/internal/service/ai"
)

var (
	sessionFlag string
	timeoutFlag time.Duration
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "classifytester",
	Short: "Run messages through the classification pipeline from the terminal",
	Long:  "Loads the same environment as the API server (.env included) and prints pipeline replies as JSON.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify a single message with the full pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, log, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer svc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
		defer cancel()

		reply, err := svc.Pipeline.Handle(ctx, wellbeing.InboundMessage{
			Text:      strings.Join(args, " "),
			SessionID: sessionFlag,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), reply)
	},
}

var riskCmd = &cobra.Command{
	Use:   "risk <text>",
	Short: "Run only the local high-risk phrase matcher (no network)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		matcher := risk.NewMatcher(nil, os.Getenv("RISK_ESCALATION_MESSAGE"))
		return printJSON(cmd.OutOrStdout(), matcher.Detect(strings.Join(args, " ")))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&sessionFlag, "session", "s", "", "session id sent with every message (default: generated)")
	RootCmd.PersistentFlags().DurationVarP(&timeoutFlag, "timeout", "t", 2*time.Minute, "overall timeout")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log pipeline activity to stderr")

	RootCmd.AddCommand(classifyCmd, batchCmd, riskCmd)
}

func openService(ctx context.Context) (*ai.Service, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.Nop()
	if verboseFlag {
		if log, err = logger.New(cfg.Log.Mode); err != nil {
			return nil, nil, err
		}
	}

	svc, err := ai.NewService(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, log, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
