package provision

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/mori-agent/mori/internal/domain"
)

// Summary is what one run did, per target.
type Summary struct {
	RunID       string
	Mode        domain.Mode
	Selection   *domain.ModelSelection
	Service     *domain.ServiceHandle
	ModelPulled bool
	Outcomes    []domain.ProvisioningOutcome
}

// Failed reports whether any target failed.
func (s *Summary) Failed() bool {
	for _, o := range s.Outcomes {
		if o.Result == domain.ResultFailed {
			return true
		}
	}
	return false
}

// Render writes the operator-facing report.
func (s *Summary) Render(w io.Writer) error {
	fmt.Fprintf(w, "run %s (%s)\n", s.RunID, s.Mode)

	if sel := s.Selection; sel != nil {
		r := sel.Rationale
		fmt.Fprintf(w, "  cpu:    %d cores @ %d MHz, score %d\n", r.CPUCores, r.CPUClockMHz, r.CPUScore)
		fmt.Fprintf(w, "  memory: %s total, %s free, score %d\n",
			humanize.IBytes(mb(r.TotalMemMB)), humanize.IBytes(mb(r.FreeMemMB)), r.MemoryScore)
		gpu := string(r.GPUClass)
		if r.GPUName != "" {
			gpu += " (" + r.GPUName + ")"
		}
		fmt.Fprintf(w, "  gpu:    %s\n", gpu)

		model := sel.ConfigurationID
		if sel.Overridden {
			model += " (override)"
		} else {
			model += " (" + string(sel.Tier) + " tier)"
		}
		fmt.Fprintf(w, "  model:  %s\n", model)
	}
	if h := s.Service; h != nil {
		fmt.Fprintf(w, "  service: %s pid %d on port %d, %s\n", h.Name, h.PID, h.Port, h.State)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nTARGET\tRESULT\tDETAIL")
	for _, o := range s.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Target(), o.Result, o.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	verdict := "provisioning complete"
	if s.Failed() {
		verdict = "provisioning failed"
	}
	_, err := fmt.Fprintf(w, "\n%s\n", verdict)
	return err
}

func mb(v int) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v) * humanize.MiByte
}
