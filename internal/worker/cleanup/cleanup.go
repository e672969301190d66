// Package cleanup は所属デッキを失ったカードの定期削除ジョブを提供する。
// デッキ削除のカスケードが途中で中断された場合に残るカードを回収する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blossom/internal/metrics"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = time.Hour

// OrphanDeleter は孤立カードの削除を抽象化するインターフェース。
// repository.CardRepositoryが満たす。
type OrphanDeleter interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// CleanupJob は孤立カードの削除ジョブ。
// 削除対象がない場合も成功として扱い、何度実行しても結果は変わらない。
type CleanupJob struct {
	cards    OrphanDeleter
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	Interval time.Duration // Start時の実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(cards OrphanDeleter, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		cards:    cards,
		metrics:  collector,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は孤立カードを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.cards.DeleteOrphans(ctx)
	if err != nil {
		j.logger.Error("孤立カードのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("孤立カードのクリーンアップに失敗: %w", err)
	}
	j.metrics.RecordOrphansRemoved(deletedCount)

	duration := time.Since(start)
	j.logger.Info("孤立カードのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以後Intervalごとに実行する。
// ctxがキャンセルされるまでブロックする。個々の実行エラーはログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = j.Run(ctx)
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		}
	}
}
