package reroll

import (
	"encoding/json"
	"strings"

	"github.com/inconshreveable/log15"
)

// health is the part of the runtime's health object the prober looks at.
type health struct {
	Status string `json:"Status"`
}

// prober classifies single instances by inspecting their health through the
// gateway. Probing is advisory: inspection errors never escape it, they make
// the instance count as unhealthy and as having no health check.
type prober struct {
	gw Gateway
	l  log15.Logger
}

// inspect returns the raw health text and whether it could be decoded as a
// health object. ok is false if the instance could not be inspected at all.
func (p *prober) inspect(id InstanceID) (raw string, h *health, ok bool) {
	raw, err := p.gw.InspectHealth(id)
	if err != nil {
		p.l.Debug("unable to inspect instance health", "id", id, "err", err)
		return "", nil, false
	}
	raw = strings.TrimSpace(raw)
	// "null" decodes into a nil pointer.
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return raw, nil, true
	}
	return raw, h, true
}

func (p *prober) hasHealthCheck(id InstanceID) bool {
	raw, h, ok := p.inspect(id)
	if !ok {
		return false
	}
	if h != nil {
		return h.Status != ""
	}
	return strings.Contains(raw, "Status")
}

func (p *prober) isHealthy(id InstanceID) bool {
	raw, h, ok := p.inspect(id)
	if !ok {
		return false
	}
	status := raw
	if h != nil {
		status = h.Status
	}
	return isHealthyStatus(status)
}

// isHealthyStatus reports whether status reads as healthy. "unhealthy"
// contains "healthy", so both checks are needed.
func isHealthyStatus(status string) bool {
	return strings.Contains(status, "healthy") && !strings.Contains(status, "unhealthy")
}
