package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pipeline-metrics/backend/internal/freshness"
	"github.com/wonny/pipeline-metrics/backend/pkg/config"
)

// syncStatusCmd represents the sync-status command
var syncStatusCmd = &cobra.Command{
	Use:   "sync-status",
	Short: "CRM 동기화 상태 조회",
	Long: `CRM 동기화 로그(SYNC_LOG_PATH)를 읽어 마지막 성공 시각을 표시합니다.
데이터베이스 연결 없이 동작합니다.

Example:
  go run ./cmd/metrics sync-status
  go run ./cmd/metrics sync-status --log data/hubspot_actions.log`,
	RunE: runSyncStatus,
}

var syncLogPath string

func init() {
	rootCmd.AddCommand(syncStatusCmd)

	syncStatusCmd.Flags().StringVar(&syncLogPath, "log", "", "동기화 로그 경로 (default is SYNC_LOG_PATH)")
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	path := syncLogPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Engine.SyncLogPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := freshness.NewReader(path).Read(ctx)
	if err != nil {
		return fmt.Errorf("❌ Failed to read sync log: %w", err)
	}

	fmt.Printf("Sync log: %s\n", path)
	if !st.Known {
		fmt.Println("⚠️  No successful sync recorded")
		return nil
	}

	age, _ := st.Age(time.Now())
	fmt.Printf("✅ Last success: %s (%s ago)\n", st.LastSuccess.Format("2006-01-02 15:04:05"), age.Round(time.Second))
	if st.LastAction != "" {
		fmt.Printf("   Action: %s\n", st.LastAction)
	}
	if !st.LastAttemptOK {
		fmt.Printf("⚠️  Last attempt failed at %s\n", st.LastAttempt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("   Entries: %d (malformed: %d)\n", st.Entries, st.Malformed)

	return nil
}
