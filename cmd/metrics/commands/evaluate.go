package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [view]",
	Short: "지표 평가 후 JSON 출력",
	Long: `스토어 스냅샷을 읽어 지표를 평가하고 JSON으로 출력합니다.
view를 생략하면 6개 지표 전체를 출력합니다.

Views:
  ` + strings.Join(contracts.ViewNames, "\n  ") + `

Example:
  go run ./cmd/metrics evaluate
  go run ./cmd/metrics evaluate stage_breakdown --start 2026-01-01
  go run ./cmd/metrics evaluate stale_deals --start all_time`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

var (
	evalStart    string
	evalPipeline string
	evalTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	// Flags
	evaluateCmd.Flags().StringVar(&evalStart, "start", "",
		"시작일 (YYYY-MM-DD) 또는 preset: "+strings.Join(params.Presets(), ", "))
	evaluateCmd.Flags().StringVar(&evalPipeline, "pipeline", "", "파이프라인 (default: all)")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", time.Minute, "평가 타임아웃")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	raw := params.Raw{Start: evalStart, Pipeline: evalPipeline}

	var out interface{}
	if len(args) == 1 {
		view, p, err := a.service.EvaluateView(ctx, raw, args[0])
		if err != nil {
			return err
		}
		out = map[string]interface{}{"params": p, "view": args[0], "rows": view}
	} else {
		outcome, err := a.service.Refresh(ctx, raw)
		if err != nil {
			return err
		}
		out = outcome.Results
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
