package domain

import "fmt"

// ServiceState is the supervisor's view of the inference daemon.
type ServiceState string

const (
	ServiceStopped      ServiceState = "stopped"
	ServiceStarting     ServiceState = "starting"
	ServicePortConflict ServiceState = "port_conflict"
	ServiceRunning      ServiceState = "running"
	ServiceFailed       ServiceState = "failed"
)

var serviceTransitions = map[ServiceState][]ServiceState{
	ServiceStopped:      {ServiceStarting},
	ServiceStarting:     {ServiceRunning, ServicePortConflict, ServiceFailed},
	ServicePortConflict: {ServiceStarting, ServiceFailed},
	ServiceRunning:      {ServiceStopped},
	ServiceFailed:       {ServiceStopped},
}

// CanTransition reports whether the state machine allows from -> to.
// Staying in the same state is always allowed.
func CanTransition(from, to ServiceState) bool {
	if from == to {
		return true
	}
	for _, next := range serviceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceHandle tracks the single instance bound to Port.
type ServiceHandle struct {
	Name           string       `json:"name"`
	PID            int          `json:"pid,omitempty"`
	Port           int          `json:"port"`
	HealthEndpoint string       `json:"health_endpoint"`
	State          ServiceState `json:"state"`
}

// ErrIllegalTransition is returned when the supervisor is asked to move
// the handle along an edge the state machine does not have.
type ErrIllegalTransition struct {
	From ServiceState
	To   ServiceState
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal service transition %s -> %s", e.From, e.To)
}
