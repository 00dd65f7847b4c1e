package service

import (
	"context"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/explain"
	"github.com/clinical-risk-scorer/internal/features"
)

// DomainInfo describes one domain to clients: its input fields in classifier
// order, the verdicts it can produce and the loaded model.
type DomainInfo struct {
	Domain     domain.Domain        `json:"domain"`
	Name       string               `json:"name"`
	Tiered     bool                 `json:"tiered"`
	Verdicts   []domain.Verdict     `json:"verdicts"`
	Fields     []features.FieldSpec `json:"fields,omitempty"`
	Model      *domain.ModelInfo    `json:"model,omitempty"`
	Education  []explain.Topic      `json:"education,omitempty"`
	References []string             `json:"references,omitempty"`
}

func verdictsOf(d domain.Domain) []domain.Verdict {
	if d.Tiered() {
		return []domain.Verdict{domain.VerdictLow, domain.VerdictModerate, domain.VerdictHigh}
	}
	return []domain.Verdict{domain.VerdictPositive, domain.VerdictNegative}
}

// Describe returns the full description of d, including its fields.
func (e *Evaluator) Describe(d domain.Domain) (*DomainInfo, error) {
	schema, err := features.SchemaFor(d)
	if err != nil {
		return nil, err
	}
	info := &DomainInfo{
		Domain:     d,
		Name:       schema.Name,
		Tiered:     d.Tiered(),
		Verdicts:   verdictsOf(d),
		Fields:     append([]features.FieldSpec(nil), schema.Fields...),
		Education:  explain.Education(d),
		References: explain.References(d),
	}
	if h, err := e.registry.Lookup(d); err == nil {
		m := h.Info()
		info.Model = &m
	}
	return info, nil
}

// Domains lists every domain without field details.
func (e *Evaluator) Domains() []DomainInfo {
	out := make([]DomainInfo, 0, len(domain.AllDomains))
	for _, d := range domain.AllDomains {
		info, err := e.Describe(d)
		if err != nil {
			continue
		}
		info.Fields = nil
		info.Education = nil
		info.References = nil
		out = append(out, *info)
	}
	return out
}

// Health reports the state of each dependency. The registry is always
// required; cache and audit are reported only when configured.
func (e *Evaluator) Health(ctx context.Context) (map[string]string, bool) {
	status := map[string]string{}
	healthy := true

	if e.registry.Len() == len(domain.AllDomains) {
		status["models"] = "ok"
	} else {
		status["models"] = "incomplete"
		healthy = false
	}

	if e.cache != nil {
		if err := e.cache.Ping(ctx); err != nil {
			status["cache"] = "unavailable: " + err.Error()
		} else {
			status["cache"] = "ok"
		}
	}

	if e.audit != nil {
		if err := e.audit.Ping(ctx); err != nil {
			status["audit"] = "unavailable: " + err.Error()
		} else {
			status["audit"] = "ok"
		}
	}

	return status, healthy
}
