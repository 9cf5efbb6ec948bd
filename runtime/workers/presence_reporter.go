package workers

import (
	"chat-presence/contract"
	"chat-presence/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceReporter samples the online set at a fixed interval, publishes its
// size as a gauge and logs a heartbeat with the server's own CPU and memory.
type PresenceReporter struct {
	log            *slog.Logger
	registry       contract.IRegistry
	metrics        *observability.Metrics
	metricInterval time.Duration
}

func NewPresenceReporter(log *slog.Logger, registry contract.IRegistry,
	metrics *observability.Metrics, metricInterval time.Duration) *PresenceReporter {
	return &PresenceReporter{
		log:            log,
		registry:       registry,
		metrics:        metrics,
		metricInterval: metricInterval,
	}
}

func (w *PresenceReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("Process stats unavailable", "err", err)
		self = nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(self)
		}
	}
}

func (w *PresenceReporter) report(self *process.Process) int {
	online := len(w.registry.SnapshotOnlineIDs())
	w.metrics.OnlineIdentities(online)

	attrs := []any{"online_identities", online}
	if self != nil {
		if cpu, err := self.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu_percent", cpu)
		}
		if mem, err := self.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss_bytes", mem.RSS)
		}
	}
	w.log.Debug("Presence report", attrs...)
	return online
}
