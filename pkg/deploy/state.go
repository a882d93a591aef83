// verge/pkg/deploy/state.go

package deploy

import (
	"errors"
	"sync"
)

// Status is the deployment lifecycle state for one attempt.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusDeploying Status = "deploying"
	StatusVerifying Status = "verifying"
	StatusVerified  Status = "verified"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
)

// State tracks one deployment attempt against one service. It is owned
// exclusively by the attempt that created it and discarded afterwards;
// only the last-chosen service/store ids outlive it, via the session.
type State struct {
	ServiceID         string
	ConfigStoreID     string
	CurrentVersion    int
	LastKnownEdgeHash string
	Status            Status
}

// ErrDeployInFlight is returned when a deployment is already running
// against the same service. Attempts are keyed by service id; two
// different services may deploy concurrently.
var ErrDeployInFlight = errors.New("a deployment for this service is already in flight")

// registry tracks in-flight attempts by service id.
type registry struct {
	mu       sync.Mutex
	inflight map[string]bool
}

func newRegistry() *registry {
	return &registry{inflight: make(map[string]bool)}
}

// begin claims the service for one attempt or reports a conflict.
func (r *registry) begin(serviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[serviceID] {
		return ErrDeployInFlight
	}
	r.inflight[serviceID] = true
	return nil
}

func (r *registry) end(serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, serviceID)
}
