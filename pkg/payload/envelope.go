// verge/pkg/payload/envelope.go

package payload

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the JSON value persisted in the remote config store under
// key = service id, and mirrored by the local development channel.
type Envelope struct {
	Version     string `json:"version"`
	DeployedAt  string `json:"deployedAt"`
	RulesPacked string `json:"rules_packed"`
}

// NewEnvelope stamps a packed payload with the deploying tool version
// and the current wall clock.
func NewEnvelope(version string, p *Packed) *Envelope {
	return &Envelope{
		Version:     version,
		DeployedAt:  time.Now().UTC().Format(time.RFC3339),
		RulesPacked: p.RulesPacked,
	}
}

func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes a stored envelope and rejects one with an empty
// rules_packed field.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse payload envelope: %w", err)
	}
	if e.RulesPacked == "" {
		return nil, fmt.Errorf("payload envelope has empty rules_packed")
	}
	return &e, nil
}
