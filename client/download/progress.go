package download

import (
	"fmt"
	"log/slog"
	"time"
)

// ProgressLogger logs download progress at most once per second, plus
// once when the transfer reaches its expected size. It is not safe for
// concurrent use.
type ProgressLogger struct {
	logger    *slog.Logger
	startTime time.Time
	lastLog   time.Time
	done      bool
}

func NewProgressLogger(logger *slog.Logger) *ProgressLogger {
	return &ProgressLogger{
		logger:    logger,
		startTime: time.Now(),
	}
}

// Observe records that completed of total bytes are written. total is
// negative when unknown.
func (pl *ProgressLogger) Observe(completed, total int64) {
	if pl == nil || pl.done {
		return
	}

	if total >= 0 && completed >= total {
		pl.done = true
		pl.log("download complete", completed, total)
		return
	}

	if time.Since(pl.lastLog) >= time.Second {
		pl.lastLog = time.Now()
		pl.log("downloading", completed, total)
	}
}

func (pl *ProgressLogger) log(msg string, completed, total int64) {
	elapsed := time.Since(pl.startTime)

	progress := "unknown"
	if total > 0 {
		progress = fmt.Sprintf("%.1f%%", float64(completed)/float64(total)*100)
	}

	attrs := []any{
		"progress", progress,
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", completed,
		"total", total,
		"mbps", fmt.Sprintf("%.2f", float64(completed)/elapsed.Seconds()/(1024*1024)),
	}
	pl.logger.Info(msg, attrs...)
}
