// Package host implements a reference collector that samples local host
// CPU and memory utilisation. It stands in for a cloud metrics backend
// when running the agent against the machine it is deployed on.
package host

import (
	"context"
	"fmt"
	"time"

	gocpu "github.com/shirou/gopsutil/v4/cpu"
	gomem "github.com/shirou/gopsutil/v4/mem"

	"github.com/rafique586/cloudence/internal/errors"
	"github.com/rafique586/cloudence/internal/models"
)

// Metric IDs served by this collector.
const (
	MetricCPUUsage    = "host/cpu/usage_percent"
	MetricMemoryUsage = "host/memory/used_percent"
)

// System call wrappers for testing
var (
	cpuPercent    = gocpu.PercentWithContext
	virtualMemory = gomem.VirtualMemoryWithContext
)

// Collector samples the local host on every Fetch call. Because it
// observes the present, it returns a single sample per metric stamped
// with the current time; callers accumulate history across poll cycles.
type Collector struct {
	hostname string
	nowFn    func() time.Time
}

// New creates a host collector. The hostname is attached as a resource
// label on every sample.
func New(hostname string) *Collector {
	return &Collector{hostname: hostname, nowFn: time.Now}
}

// Fetch implements collector.Collector. The filter selects one of the
// known metric IDs; an empty filter returns all of them.
func (c *Collector) Fetch(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error) {
	collectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var samples []models.Sample
	now := c.nowFn()
	// Callers build windows ending at the moment they fetch, so a sample
	// stamped at fetch time lands at or past the half-open window end and
	// alignment drops it. Clamp the stamp just inside the interval.
	if !interval.End.IsZero() && !now.Before(interval.End) {
		now = interval.End.Add(-time.Nanosecond)
	}

	if filter == "" || filter == MetricCPUUsage {
		percentages, err := cpuPercent(collectCtx, time.Second, false)
		if err != nil {
			return nil, errors.WrapCollectorError("fetch_host_cpu", filter, err)
		}
		if len(percentages) == 0 {
			return nil, errors.WrapCollectorError("fetch_host_cpu", filter, fmt.Errorf("no cpu usage data returned"))
		}
		samples = append(samples, c.sample(MetricCPUUsage, percentages[0], now))
	}

	if filter == "" || filter == MetricMemoryUsage {
		memStats, err := virtualMemory(collectCtx)
		if err != nil {
			return nil, errors.WrapCollectorError("fetch_host_memory", filter, err)
		}
		samples = append(samples, c.sample(MetricMemoryUsage, memStats.UsedPercent, now))
	}

	return samples, nil
}

func (c *Collector) sample(metricID string, value float64, ts time.Time) models.Sample {
	return models.Sample{
		MetricID: metricID,
		ResourceLabels: map[string]string{
			"host": c.hostname,
		},
		Timestamp: ts,
		Value:     models.ScalarValue(value),
	}
}
