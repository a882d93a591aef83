// verge/pkg/deploy/orchestrator.go

package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"verge/pkg/graph"
	"verge/pkg/logging"
	"verge/pkg/payload"
	"verge/pkg/platform"
	"verge/pkg/session"
)

// StoreName is the shared config store holding one payload per
// deployed service, and LinkName the well-known resource link under
// which every service version references it.
const (
	StoreName = "security_rules"
	LinkName  = "security_rules"
)

// Poll budgets are attempt-counted rather than wall-clock-only to stay
// robust to clock skew between probes.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 60
	BinaryPollAttempts     = 30
)

// ToolVersion is stamped into the payload envelope.
const ToolVersion = "1.0.0"

// Orchestrator sequences remote deployment operations: resource
// reconciliation, version activation, payload upload and edge
// verification. One orchestrator serves many services; attempts
// against the same service are rejected while one is in flight.
type Orchestrator struct {
	client  *platform.Client
	session *session.Session

	// Probe issues the public introspection requests; separate from the
	// API client so each poll gets its own bounded timeout.
	Probe           *http.Client
	ProbeScheme     string
	PollInterval    time.Duration
	MaxPollAttempts int

	attempts *registry
}

func New(client *platform.Client, sess *session.Session) *Orchestrator {
	return &Orchestrator{
		client:          client,
		session:         sess,
		Probe:           &http.Client{Timeout: 10 * time.Second},
		ProbeScheme:     "https",
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
		attempts:        newRegistry(),
	}
}

// Deploy validates, packs and ships a graph to the service's shared
// store, then polls the edge until the deployed hash is observed or the
// attempt budget runs out. The returned State always reflects the final
// status, including on error.
func (o *Orchestrator) Deploy(ctx context.Context, serviceID string, g *graph.Graph) (*State, error) {
	if err := o.attempts.begin(serviceID); err != nil {
		return nil, err
	}
	defer o.attempts.end(serviceID)

	state := &State{ServiceID: serviceID, Status: StatusIdle}

	// Validation problems refuse deployment outright; they are a list
	// for the operator, not a pipeline failure.
	if problems := graph.Validate(g); len(problems) > 0 {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeValidation,
			fmt.Sprintf("graph has %d validation problem(s)", len(problems)), nil,
			map[string]interface{}{"problems": problems})
	}

	canonical, err := graph.Marshal(graph.Canonicalize(g))
	if err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeLocal, "failed to canonicalize graph", err, nil)
	}

	packed, err := payload.Pack(canonical)
	if err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeLocal, "failed to pack payload", err, nil)
	}
	// Size overflow is distinct from validation: the operator must
	// simplify the rule set, not fix connectivity.
	if !packed.FitsInConfigStore {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeSize,
			fmt.Sprintf("packed payload is %d bytes, store ceiling is %d", packed.CompressedSize, payload.MaxConfigValueBytes),
			nil, map[string]interface{}{"compressed_size": packed.CompressedSize})
	}

	state.Status = StatusDeploying
	logging.Logger.Info().Str("service", serviceID).Str("hash", packed.Hash).Msg("Deploying rule set")

	storeID, err := o.ensureStore(ctx)
	if err != nil {
		state.Status = StatusError
		return state, err
	}
	state.ConfigStoreID = storeID
	o.session.RememberStore(storeID)

	version, err := o.ensureLink(ctx, serviceID, storeID)
	if err != nil {
		state.Status = StatusError
		return state, err
	}
	state.CurrentVersion = version

	if err := o.activate(ctx, serviceID, version); err != nil {
		state.Status = StatusError
		return state, err
	}

	envelope := payload.NewEnvelope(ToolVersion, packed)
	value, err := envelope.Marshal()
	if err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeLocal, "failed to marshal payload envelope", err, nil)
	}
	if err := o.client.UpsertConfigItem(ctx, storeID, serviceID, string(value)); err != nil {
		state.Status = StatusError
		return state, logging.NewError(logging.ErrorTypeRemote, "failed to upload payload", err, nil)
	}
	o.session.RememberService(serviceID)

	state.Status = StatusVerifying
	return state, o.verifyHash(ctx, state, serviceID, version, packed.Hash, o.MaxPollAttempts)
}

// ensureStore finds or creates the shared config store.
func (o *Orchestrator) ensureStore(ctx context.Context) (string, error) {
	stores, err := o.client.ListConfigStores(ctx)
	if err != nil {
		return "", logging.NewError(logging.ErrorTypeRemote, "failed to list config stores", err, nil)
	}
	for _, s := range stores {
		if s.Name == StoreName {
			return s.ID, nil
		}
	}

	logging.Logger.Info().Str("store", StoreName).Msg("Shared config store missing, creating")
	created, err := o.client.CreateConfigStore(ctx, StoreName)
	if err != nil {
		return "", logging.NewError(logging.ErrorTypeRemote, "failed to create config store", err, nil)
	}
	return created.ID, nil
}

// ensureLink reconciles the well-known resource link on the service's
// latest version, cloning the version once if the platform refuses to
// modify it. A link pointing at the wrong store is deleted and
// recreated, never silently adopted. Returns the version carrying the
// correct link.
func (o *Orchestrator) ensureLink(ctx context.Context, serviceID, storeID string) (int, error) {
	version, err := o.latestVersion(ctx, serviceID)
	if err != nil {
		return 0, err
	}

	if err := o.reconcileLink(ctx, serviceID, version, storeID); err != nil {
		// One retry boundary: locked versions reject modification, so
		// clone and reconcile the clone.
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && !apiErr.Conflict() {
			logging.Logger.Warn().Err(err).Int("version", version).Msg("Link reconciliation failed, retrying on a cloned version")
			clone, cloneErr := o.client.CloneVersion(ctx, serviceID, version)
			if cloneErr != nil {
				return 0, logging.NewError(logging.ErrorTypeRemote, "failed to clone service version", cloneErr, nil)
			}
			if err := o.reconcileLink(ctx, serviceID, clone.Number, storeID); err != nil {
				return 0, logging.NewError(logging.ErrorTypeRemote, "failed to link config store", err, nil)
			}
			return clone.Number, nil
		}
		if err != nil {
			return 0, logging.NewError(logging.ErrorTypeRemote, "failed to link config store", err, nil)
		}
	}
	return version, nil
}

// reconcileLink makes the named link on one version point at storeID.
func (o *Orchestrator) reconcileLink(ctx context.Context, serviceID string, version int, storeID string) error {
	links, err := o.client.ListResourceLinks(ctx, serviceID, version)
	if err != nil {
		return err
	}

	for _, link := range links {
		if link.Name != LinkName {
			continue
		}
		if link.ResourceID == storeID {
			logging.Logger.Debug().Int("version", version).Msg("Config store already linked")
			return nil
		}
		logging.Logger.Warn().
			Str("linked", link.ResourceID).Str("expected", storeID).
			Msg("Link points at the wrong store, recreating")
		if err := o.client.DeleteResourceLink(ctx, serviceID, version, link.ID); err != nil {
			return err
		}
		_, err := o.client.CreateResourceLink(ctx, serviceID, version, LinkName, storeID)
		return err
	}

	_, err = o.client.CreateResourceLink(ctx, serviceID, version, LinkName, storeID)
	if err != nil {
		// A conflict means another writer created it between our list
		// and create; re-read and only escalate on a wrong target.
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.Conflict() {
			links, listErr := o.client.ListResourceLinks(ctx, serviceID, version)
			if listErr != nil {
				return listErr
			}
			for _, link := range links {
				if link.Name == LinkName && link.ResourceID == storeID {
					return nil
				}
				if link.Name == LinkName {
					if err := o.client.DeleteResourceLink(ctx, serviceID, version, link.ID); err != nil {
						return err
					}
					_, err := o.client.CreateResourceLink(ctx, serviceID, version, LinkName, storeID)
					return err
				}
			}
		}
		return err
	}
	return nil
}

func (o *Orchestrator) latestVersion(ctx context.Context, serviceID string) (int, error) {
	versions, err := o.client.ListVersions(ctx, serviceID)
	if err != nil {
		return 0, logging.NewError(logging.ErrorTypeRemote, "failed to list service versions", err, nil)
	}
	if len(versions) == 0 {
		return 0, logging.NewError(logging.ErrorTypeRemote, "service has no versions", nil,
			map[string]interface{}{"service": serviceID})
	}
	latest := versions[0].Number
	for _, v := range versions {
		if v.Number > latest {
			latest = v.Number
		}
	}
	return latest, nil
}

// activate activates the version; an already-active version is fine.
func (o *Orchestrator) activate(ctx context.Context, serviceID string, version int) error {
	if err := o.client.ActivateVersion(ctx, serviceID, version); err != nil {
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.Conflict() {
			logging.Logger.Debug().Int("version", version).Msg("Version already active")
			return nil
		}
		return logging.NewError(logging.ErrorTypeRemote, "failed to activate service version", err, nil)
	}
	return nil
}
