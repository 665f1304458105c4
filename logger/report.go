package logger

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LogRunReport writes one end-of-run line combining the caller's run
// statistics with process and host figures. Host lookups that fail are
// reported as zero.
func LogRunReport(log *Log, stats Fields) {
	fields := Fields{}
	for k, v := range stats {
		fields[k] = v
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	hostMemMB := int64(0)
	if vm, err := mem.VirtualMemory(); err == nil {
		hostMemMB = int64(vm.Used) / 1024 / 1024
	}

	fields["warnings"] = log.Warnings()
	fields["errors"] = log.Errors()
	fields["goroutines"] = runtime.NumGoroutine()
	fields["heap_alloc_mb"] = int64(ms.HeapAlloc) / 1024 / 1024
	fields["host_memory_mb"] = hostMemMB
	fields["cpu_percent"] = cpuPct

	log.WithComponent("report").WithFields(fields).Info("run report")
}
