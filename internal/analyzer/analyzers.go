package analyzer

import (
	"strings"

	"github.com/maxbolgarin/critique/internal/model"
)

// NewLogic looks for bugs: nil derefs, unreachable code, off-by-one
// errors, loop termination, wrong parameter usage.
func NewLogic(gateway Gateway) model.Analyzer {
	return newBase(gateway, model.CategoryLogic, logicSystemPrompt, nil)
}

// NewReadability looks for complexity, naming and documentation
// problems. Every finding must carry a concrete suggestion.
func NewReadability(gateway Gateway) model.Analyzer {
	return newBase(gateway, model.CategoryReadability, readabilitySystemPrompt, func(f *model.Finding) bool {
		return strings.TrimSpace(f.Suggestion) != ""
	})
}

// NewPerformance looks for asymptotic problems, redundant work and
// N+1 I/O patterns. Findings must carry an optimization suggestion
// and state the impact in the description.
func NewPerformance(gateway Gateway) model.Analyzer {
	return newBase(gateway, model.CategoryPerformance, performanceSystemPrompt, func(f *model.Finding) bool {
		return strings.TrimSpace(f.Suggestion) != ""
	})
}

// NewSecurity looks for injection, missing validation, auth weaknesses
// and secret exposure. Remediation guidance rides in the suggestion.
func NewSecurity(gateway Gateway) model.Analyzer {
	return newBase(gateway, model.CategorySecurity, securitySystemPrompt, func(f *model.Finding) bool {
		return strings.TrimSpace(f.Suggestion) != ""
	})
}

// BuildAll returns the four built-in analyzers in stable order.
func BuildAll(gateway Gateway) []model.Analyzer {
	return []model.Analyzer{
		NewLogic(gateway),
		NewReadability(gateway),
		NewPerformance(gateway),
		NewSecurity(gateway),
	}
}
