package completeness

import (
	"fmt"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Thresholds holds completeness gate limits. Zero disables a check.
type Thresholds struct {
	MaxOverallMissingRatio float64 `yaml:"max_overall_missing_ratio"` // 0.01
	MaxFractionWithMissing float64 `yaml:"max_fraction_with_missing"` // 0.05
	MaxFailedInstruments   int     `yaml:"max_failed_instruments"`
}

// GateResult is the pass/fail verdict on a summary
type GateResult struct {
	Passed     bool
	Violations []string
}

// Evaluate checks a summary against the thresholds
// ⭐ SSOT: 완전성 → 다운스트림 사용 가능 여부 판단
func (t Thresholds) Evaluate(s contracts.CompletenessSummary) GateResult {
	var violations []string

	if t.MaxOverallMissingRatio > 0 && s.OverallMissingRatio > t.MaxOverallMissingRatio {
		violations = append(violations, fmt.Sprintf("overall missing ratio %.4f > %.4f", s.OverallMissingRatio, t.MaxOverallMissingRatio))
	}
	if t.MaxFractionWithMissing > 0 && s.FractionWithMissing > t.MaxFractionWithMissing {
		violations = append(violations, fmt.Sprintf("fraction with missing %.4f > %.4f", s.FractionWithMissing, t.MaxFractionWithMissing))
	}
	if t.MaxFailedInstruments > 0 && s.FailedInstruments > t.MaxFailedInstruments {
		violations = append(violations, fmt.Sprintf("failed instruments %d > %d", s.FailedInstruments, t.MaxFailedInstruments))
	}

	return GateResult{
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}
