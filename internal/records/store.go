// Package records keeps the human-readable inspection records of the last
// provisioning run. They are a diagnostic side channel only: nothing in the
// pipeline reads them back to make a decision.
package records

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mori-agent/mori/internal/domain"
)

const (
	CPUFile     = "cpu_info.txt"
	MemoryFile  = "memory_info.txt"
	GPUFile     = "gpu_info.txt"
	SummaryFile = "system_summary.txt"
)

// ErrNoSummary is returned by ReadSummary before the first completed run.
var ErrNoSummary = errors.New("no summary record yet")

// Store writes key=value record files under a single directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir, ensuring the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the record directory.
func (s *Store) Dir() string {
	return s.dir
}

// WriteCapability overwrites the cpu, memory and gpu records.
func (s *Store) WriteCapability(r domain.CapabilityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpu := []kv{
		{"model", r.CPUModel},
		{"cores", strconv.Itoa(r.CPUCores)},
		{"clock_mhz", strconv.Itoa(r.CPUClockMHz)},
		{"score", strconv.Itoa(r.CPUScore)},
		{"platform", string(r.Platform)},
	}
	mem := []kv{
		{"total_mb", strconv.Itoa(r.TotalMemMB)},
		{"free_mb", strconv.Itoa(r.FreeMemMB)},
		{"score", strconv.Itoa(r.MemoryScore)},
	}
	gpu := []kv{
		{"class", string(r.GPUClass)},
		{"name", r.GPUName},
	}

	for name, lines := range map[string][]kv{CPUFile: cpu, MemoryFile: mem, GPUFile: gpu} {
		if err := s.write(name, lines); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary overwrites the consolidated record for one run.
func (s *Store) WriteSummary(runID string, sel domain.ModelSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := sel.Rationale
	return s.write(SummaryFile, []kv{
		{"run_id", runID},
		{"timestamp", r.Timestamp.UTC().Format(time.RFC3339)},
		{"platform", string(r.Platform)},
		{"cpu_cores", strconv.Itoa(r.CPUCores)},
		{"cpu_clock_mhz", strconv.Itoa(r.CPUClockMHz)},
		{"cpu_score", strconv.Itoa(r.CPUScore)},
		{"total_memory_mb", strconv.Itoa(r.TotalMemMB)},
		{"free_memory_mb", strconv.Itoa(r.FreeMemMB)},
		{"memory_score", strconv.Itoa(r.MemoryScore)},
		{"gpu_class", string(r.GPUClass)},
		{"tier", string(sel.Tier)},
		{"model", sel.ConfigurationID},
		{"overridden", strconv.FormatBool(sel.Overridden)},
	})
}

// ReadSummary parses the consolidated record.
func (s *Store) ReadSummary() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, SummaryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSummary
	}
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	return parse(data), nil
}

type kv struct {
	key, value string
}

// write replaces name atomically so a reader never sees a half-written record.
func (s *Store) write(name string, lines []kv) error {
	var buf bytes.Buffer
	for _, l := range lines {
		fmt.Fprintf(&buf, "%s=%s\n", l.key, sanitize(l.value))
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func sanitize(v string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.TrimSpace(v))
}

func parse(data []byte) map[string]string {
	out := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
