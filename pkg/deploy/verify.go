// verge/pkg/deploy/verify.go

package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"verge/pkg/logging"
)

// VersionPath is the public introspection endpoint served by the
// deployed compute binary; the sole channel for verifying propagation.
const VersionPath = "/_version"

// VersionInfo is the introspection response. A missing rules_hash means
// no rules have been deployed yet.
type VersionInfo struct {
	Engine     string `json:"engine"`
	Version    string `json:"version"`
	Format     string `json:"format"`
	RulesHash  string `json:"rules_hash,omitempty"`
	NodesCount int    `json:"nodes_count,omitempty"`
	EdgesCount int    `json:"edges_count,omitempty"`
}

// verifyHash polls the service's public domain until the edge reports
// the expected hash. Strictly sequential: wait one interval, issue one
// probe, decide. Exhausting the attempt budget is a timeout, not a
// failed write — the payload is in the store, propagation is just
// delayed — and the error message says so.
func (o *Orchestrator) verifyHash(ctx context.Context, state *State, serviceID string, version int, wantHash string, maxAttempts int) error {
	domain, err := o.serviceDomain(ctx, serviceID, version)
	if err != nil {
		state.Status = StatusError
		return err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			state.Status = StatusError
			return logging.NewError(logging.ErrorTypeVerify, "verification cancelled", ctx.Err(), nil)
		case <-time.After(o.PollInterval):
		}

		info, err := o.probe(ctx, domain)
		if err != nil {
			// The edge may still be warming up; keep polling unless the
			// response was malformed.
			var malformed *malformedProbeError
			if errors.As(err, &malformed) {
				state.Status = StatusError
				return logging.NewError(logging.ErrorTypeVerify, "edge returned a malformed introspection response", err, nil)
			}
			logging.Logger.Debug().Err(err).Int("attempt", attempt).Msg("Probe failed, continuing")
			continue
		}

		state.LastKnownEdgeHash = info.RulesHash
		logging.Logger.Debug().
			Int("attempt", attempt).
			Str("edge_hash", info.RulesHash).
			Str("want_hash", wantHash).
			Msg("Probed edge")

		if info.RulesHash == wantHash {
			state.Status = StatusVerified
			logging.Logger.Info().Str("service", serviceID).Int("attempts", attempt).Msg("Deployment verified at the edge")
			return nil
		}
	}

	state.Status = StatusTimeout
	return logging.NewError(logging.ErrorTypeVerify,
		fmt.Sprintf("edge did not report hash %s within %d attempts; the upload succeeded, propagation is delayed", wantHash, maxAttempts),
		nil, map[string]interface{}{"last_edge_hash": state.LastKnownEdgeHash})
}

// serviceDomain picks the first domain of the service version.
func (o *Orchestrator) serviceDomain(ctx context.Context, serviceID string, version int) (string, error) {
	domains, err := o.client.ListDomains(ctx, serviceID, version)
	if err != nil {
		return "", logging.NewError(logging.ErrorTypeRemote, "failed to list service domains", err, nil)
	}
	if len(domains) == 0 {
		return "", logging.NewError(logging.ErrorTypeRemote, "service version has no domains to verify against", nil,
			map[string]interface{}{"service": serviceID, "version": version})
	}
	return domains[0].Name, nil
}

type malformedProbeError struct{ err error }

func (e *malformedProbeError) Error() string { return "malformed probe response: " + e.err.Error() }
func (e *malformedProbeError) Unwrap() error { return e.err }

// probe issues exactly one introspection request.
func (o *Orchestrator) probe(ctx context.Context, domain string) (*VersionInfo, error) {
	url := fmt.Sprintf("%s://%s%s", o.ProbeScheme, domain, VersionPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.Probe.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}

	var info VersionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &malformedProbeError{err: err}
	}
	return &info, nil
}
