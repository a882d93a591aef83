// verge/pkg/deploy/binary.go

package deploy

import (
	"context"
	"time"

	"verge/pkg/bundle"
	"verge/pkg/logging"
)

// UpdateBinary ships a new compute binary: build the distribution
// package, clone the latest version (the active one is locked), upload,
// activate, then poll the introspection endpoint until the edge answers
// with the expected engine version. Uses the shorter binary attempt
// budget.
func (o *Orchestrator) UpdateBinary(ctx context.Context, serviceID string, binary []byte, engineVersion string) (*State, error) {
	if err := o.attempts.begin(serviceID); err != nil {
		return nil, err
	}
	defer o.attempts.end(serviceID)

	state := &State{ServiceID: serviceID, Status: StatusDeploying}

	packageGz, err := bundle.BuildGz(serviceName(serviceID), binary)
	if err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeLocal, "failed to build compute package", err, nil)
	}

	latest, err := o.latestVersion(ctx, serviceID)
	if err != nil {
		state.Status = StatusError
		return state, err
	}

	clone, err := o.client.CloneVersion(ctx, serviceID, latest)
	if err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeRemote, "failed to clone service version", err, nil)
	}
	state.CurrentVersion = clone.Number

	if err := o.client.UploadPackage(ctx, serviceID, clone.Number, packageGz); err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeRemote, "failed to upload compute package", err, nil)
	}

	if err := o.activate(ctx, serviceID, clone.Number); err != nil {
		state.Status = StatusError
		return state, err
	}

	state.Status = StatusVerifying
	return state, o.verifyEngine(ctx, state, serviceID, clone.Number, engineVersion)
}

// verifyEngine polls until the edge reports the expected engine
// version, with the binary attempt budget.
func (o *Orchestrator) verifyEngine(ctx context.Context, state *State, serviceID string, version int, wantVersion string) error {
	domain, err := o.serviceDomain(ctx, serviceID, version)
	if err != nil {
		state.Status = StatusError
		return err
	}

	for attempt := 1; attempt <= BinaryPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			state.Status = StatusError
			return logging.NewError(logging.ErrorTypeVerify, "verification cancelled", ctx.Err(), nil)
		case <-time.After(o.PollInterval):
		}

		info, err := o.probe(ctx, domain)
		if err != nil {
			logging.Logger.Debug().Err(err).Int("attempt", attempt).Msg("Probe failed, continuing")
			continue
		}
		if wantVersion == "" || info.Version == wantVersion {
			state.Status = StatusVerified
			logging.Logger.Info().Str("service", serviceID).Str("engine_version", info.Version).Msg("Binary update verified at the edge")
			return nil
		}
	}

	state.Status = StatusTimeout
	return logging.NewError(logging.ErrorTypeVerify,
		"edge did not report the new engine version; the upload succeeded, propagation is delayed", nil, nil)
}

// serviceName derives the package directory name from the service id.
func serviceName(serviceID string) string {
	return "verge-" + serviceID
}
