package types

import "fmt"

// Bytes is a memory size in bytes.
type Bytes uint64

var units = [...]string{"KB", "MB", "GB", "TB"}

// Humanized formats b with a 1024-based unit, "512 B" or "1.50 KB".
func (b Bytes) Humanized() string {
	if b < 1<<10 {
		return fmt.Sprintf("%d B", uint64(b))
	}
	v, i := float64(b)/(1<<10), 0
	for v >= 1<<10 && i < len(units)-1 {
		v /= 1 << 10
		i++
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}

// PercentOf returns b as a percentage of total, 0 when total is unknown.
func (b Bytes) PercentOf(total Bytes) float64 {
	if total == 0 {
		return 0
	}
	return float64(b) / float64(total) * 100
}
