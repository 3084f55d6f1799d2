package domain

import "time"

// PlatformClass selects how raw metrics are turned into scores.
type PlatformClass string

const (
	// PlatformUnifiedMemory is an integrated-accelerator machine (Apple silicon).
	PlatformUnifiedMemory PlatformClass = "unified_memory"
	// PlatformTotalMemory reports total memory reliably but not free memory (Intel macOS).
	PlatformTotalMemory PlatformClass = "total_memory"
	// PlatformFreeMemory reports free memory reliably (Linux and the rest).
	PlatformFreeMemory PlatformClass = "free_memory"
)

// GPUClass is the coarse accelerator category found on the machine.
type GPUClass string

const (
	GPUNone                GPUClass = "none"
	GPUIntegratedMetal     GPUClass = "integrated_metal"
	GPUDiscreteAccelerator GPUClass = "discrete_accelerator"
)

// CapabilityReport is the normalized result of one profiling run.
type CapabilityReport struct {
	Platform    PlatformClass `json:"platform"`
	CPUModel    string        `json:"cpu_model"`
	CPUCores    int           `json:"cpu_cores"`
	CPUClockMHz int           `json:"cpu_clock_mhz"`
	CPUScore    int           `json:"cpu_score"`
	TotalMemMB  int           `json:"total_memory_mb"`
	FreeMemMB   int           `json:"free_memory_mb"`
	MemoryScore int           `json:"memory_score"`
	GPUClass    GPUClass      `json:"gpu_class"`
	GPUName     string        `json:"gpu_name,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Tier is one of the fixed workload configuration buckets.
type Tier string

const (
	TierHighest  Tier = "highest"
	TierMid      Tier = "mid"
	TierFallback Tier = "fallback"
)

// ModelSelection is the configuration chosen for one CapabilityReport.
type ModelSelection struct {
	ConfigurationID string           `json:"configuration_id"`
	Tier            Tier             `json:"tier"`
	Overridden      bool             `json:"overridden"`
	Rationale       CapabilityReport `json:"rationale"`
}
