// Package overdue は延滞状況のバックグラウンド監視を提供する。
// 一定間隔で延滞中の貸出件数を集計し、メトリクスのゲージに反映する。
package overdue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/lendman/internal/metrics"
	"github.com/hitoshi/lendman/internal/repository"
)

// Monitor は延滞貸出の件数を定期的に集計するワーカー。
type Monitor struct {
	borrowRepo    repository.BorrowRepository
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	thresholdDays int
	now           func() time.Time
}

// NewMonitor はMonitorの新しいインスタンスを生成する。
// thresholdDaysが0以下の場合はデフォルト値14を使用する。
func NewMonitor(
	borrowRepo repository.BorrowRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	thresholdDays int,
) *Monitor {
	if thresholdDays <= 0 {
		thresholdDays = 14
	}
	return &Monitor{
		borrowRepo:    borrowRepo,
		collector:     collector,
		logger:        logger,
		thresholdDays: thresholdDays,
		now:           time.Now,
	}
}

// Start は指定間隔のティッカーで監視を起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("延滞監視を開始しました",
		slog.Duration("interval", interval),
		slog.Int("threshold_days", m.thresholdDays),
	)

	// 起動直後に1回実行
	if err := m.RunOnce(ctx); err != nil {
		m.logger.Error("延滞集計の実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("延滞監視を停止しました")
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error("延滞集計の実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は延滞中の貸出を1回集計し、ゲージを更新する。
// 読み取り専用で冪等。集計対象がない場合はゲージを0にする。
func (m *Monitor) RunOnce(ctx context.Context) error {
	start := time.Now()

	cutoff := m.now().UTC().Add(-time.Duration(m.thresholdDays) * 24 * time.Hour)
	loans, err := m.borrowRepo.ListOverdue(ctx, cutoff)
	if err != nil {
		return err
	}

	m.collector.SetOverdueLoans(len(loans))

	m.logger.Info("延滞集計が完了しました",
		slog.Int("overdue_count", len(loans)),
		slog.Int("threshold_days", m.thresholdDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
