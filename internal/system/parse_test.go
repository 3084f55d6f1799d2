package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCPUInfo(t *testing.T) {
	data := []byte(`processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU @ 2.20GHz
cpu MHz		: 2199.998
processor	: 1
model name	: ignored
cpu MHz		: 1000.000
`)
	got := parseCPUInfo(data)
	assert.Equal(t, "Intel(R) Xeon(R) CPU @ 2.20GHz", got.Model)
	assert.Equal(t, 2199, got.ClockMHz)
}

func TestParseCPUInfoWithoutClock(t *testing.T) {
	got := parseCPUInfo([]byte("processor\t: 0\nBogoMIPS\t: 50.00\n"))
	assert.Equal(t, CPUInfo{}, got)
}

func TestParseMemInfo(t *testing.T) {
	data := []byte("MemTotal:       32768000 kB\nMemFree:         1024000 kB\nMemAvailable:   20480000 kB\n")
	assert.Equal(t, MemInfo{TotalMB: 32000, FreeMB: 20000}, parseMemInfo(data))

	old := []byte("MemTotal:       4096000 kB\nMemFree:        2048000 kB\n")
	assert.Equal(t, MemInfo{TotalMB: 4000, FreeMB: 2000}, parseMemInfo(old))

	assert.Equal(t, MemInfo{}, parseMemInfo(nil))
}
