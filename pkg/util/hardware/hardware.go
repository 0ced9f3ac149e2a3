package hardware

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/lk2023060901/objection-go/pkg/log"
)

// GetCPUNum 返回可用的逻辑 CPU 数量。
// 优先使用 GOMAXPROCS（容器内经 automaxprocs 修正后的值），
// 其次使用 gopsutil 获取的逻辑核数。
func GetCPUNum() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	cnt, err := cpu.Counts(true)
	if err != nil || cnt <= 0 {
		log.Warn("failed to get cpu counts", zap.Error(err))
		return 1
	}
	return cnt
}

// GetMemoryCount 返回主机内存总量，单位字节；获取失败时返回 0。
func GetMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get memory count", zap.Error(err))
		return 0
	}
	return stats.Total
}

// GetFreeMemoryCount 返回主机可用内存，单位字节；获取失败时返回 0。
func GetFreeMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get free memory count", zap.Error(err))
		return 0
	}
	return stats.Available
}
