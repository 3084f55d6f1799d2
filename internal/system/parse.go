package system

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// CPUInfo is what /proc/cpuinfo or sysctl tell us about the processor.
type CPUInfo struct {
	Model    string
	ClockMHz int
}

// MemInfo holds memory figures in MiB.
type MemInfo struct {
	TotalMB int
	FreeMB  int
}

// parseCPUInfo reads the first "model name" and "cpu MHz" entries.
func parseCPUInfo(data []byte) CPUInfo {
	var info CPUInfo
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "model name":
			if info.Model == "" {
				info.Model = value
			}
		case "cpu MHz":
			if info.ClockMHz == 0 {
				if mhz, err := strconv.ParseFloat(value, 64); err == nil && mhz > 0 {
					info.ClockMHz = int(mhz)
				}
			}
		}
	}
	return info
}

// parseMemInfo reads MemTotal and MemAvailable (kB) from /proc/meminfo.
// Kernels without MemAvailable fall back to MemFree.
func parseMemInfo(data []byte) MemInfo {
	vals := map[string]int{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) < 2 {
			continue
		}
		kb, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		vals[strings.TrimSuffix(parts[0], ":")] = kb
	}

	free, ok := vals["MemAvailable"]
	if !ok {
		free = vals["MemFree"]
	}
	return MemInfo{TotalMB: vals["MemTotal"] / 1024, FreeMB: free / 1024}
}
