package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	engineConfig string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Pipeline Metrics - CRM 영업 파이프라인 지표 엔진",
	Long: `Pipeline Metrics Unified CLI

CRM 스냅샷(deals, stages, owners, contacts)을 읽어
6개의 대시보드 지표를 계산합니다.

Usage:
  go run ./cmd/metrics [command]

Examples:
  go run ./cmd/metrics api
  go run ./cmd/metrics evaluate summary --start last_90_days
  go run ./cmd/metrics scheduler start
  go run ./cmd/metrics sync-status
  go run ./cmd/metrics test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&engineConfig, "engine-config", "", "engine settings YAML (default is ENGINE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
