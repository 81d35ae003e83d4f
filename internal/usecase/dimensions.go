package usecase

import "startup-analysis-pipeline/internal/domain/model"

// Catalog is the configured dimension taxonomy: names only, prompts and
// scoring live with the AI collaborator.
type Catalog struct {
	All      []string
	Critical []string
}

// Select resolves the dimensions a payload asks for. An explicit subset wins
// (unknown names are dropped); otherwise the mode decides: critical_only runs
// the critical set, progressive runs critical dimensions first and the rest
// after, full runs the whole catalog.
func (c Catalog) Select(p model.AnalysisPayload) []string {
	if len(p.Dimensions) > 0 {
		known := make(map[string]bool, len(c.All))
		for _, d := range c.All {
			known[d] = true
		}
		var out []string
		for _, d := range p.Dimensions {
			if known[d] {
				out = append(out, d)
			}
		}
		return out
	}
	switch p.Mode {
	case model.ModeCriticalOnly:
		return append([]string(nil), c.Critical...)
	case model.ModeProgressive:
		crit := make(map[string]bool, len(c.Critical))
		out := append([]string(nil), c.Critical...)
		for _, d := range c.Critical {
			crit[d] = true
		}
		for _, d := range c.All {
			if !crit[d] {
				out = append(out, d)
			}
		}
		return out
	default:
		return append([]string(nil), c.All...)
	}
}
