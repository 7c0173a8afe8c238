package featureconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/wonny/aiqdata/internal/contracts"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is matches contracts.ErrConfiguration
func (e ValidationError) Is(target error) bool {
	return target == contracts.ErrConfiguration
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var hhmmPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Validate checks all required constraints. cfg is not modified.
func Validate(cfg *Features) error {
	if cfg.Version == "" {
		return ValidationError{"version", "required"}
	}

	if cfg.Session.Timezone == "" {
		return ValidationError{"session.timezone", "required"}
	}
	if _, err := time.LoadLocation(cfg.Session.Timezone); err != nil {
		return ValidationError{"session.timezone", err.Error()}
	}

	// === Tail window ===
	switch cfg.TailWindow.Kind {
	case TailFixedBarCount:
		if cfg.TailWindow.BarCount < 1 {
			return ValidationError{"tail_window.bar_count", "must be >= 1"}
		}
	case TailClockWindow:
		if err := validateHHMM(cfg.TailWindow.Start); err != nil {
			return ValidationError{"tail_window.start", err.Error()}
		}
		if err := validateHHMM(cfg.TailWindow.End); err != nil {
			return ValidationError{"tail_window.end", err.Error()}
		}
		start, end := cfg.TailWindow.ClockBounds()
		if start > end {
			return ValidationError{"tail_window", "start must not be after end"}
		}
	default:
		return ValidationError{"tail_window.kind", fmt.Sprintf("must be %s or %s", TailFixedBarCount, TailClockWindow)}
	}

	// === Tail ratio mode ===
	switch cfg.TailRatioMode.Kind {
	case RatioSingleDay:
	case RatioRolling:
		if cfg.TailRatioMode.Days < 1 {
			return ValidationError{"tail_ratio_mode.days", "must be >= 1"}
		}
	default:
		return ValidationError{"tail_ratio_mode.kind", fmt.Sprintf("must be %s or %s", RatioSingleDay, RatioRolling)}
	}

	if cfg.ZeroVolumeTailRatio != ZeroVolumeUndefined && cfg.ZeroVolumeTailRatio != ZeroVolumeZero {
		return ValidationError{"zero_volume_tail_ratio", "must be undefined or zero"}
	}
	if cfg.FirstReturn != FirstReturnDrop && cfg.FirstReturn != FirstReturnZero {
		return ValidationError{"first_return", "must be drop or zero"}
	}
	if cfg.CorrSignal != CorrVolumeShare && cfg.CorrSignal != CorrLogVolume {
		return ValidationError{"corr_signal", "must be volume_share or log_volume"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Features) []Warning {
	var warnings []Warning

	if cfg.TailWindow.Kind == TailFixedBarCount && cfg.TailWindow.BarCount > 12 {
		warnings = append(warnings, Warning{
			Code:    "WIDE_TAIL_WINDOW",
			Message: fmt.Sprintf("tail window of %d bars may cover most of a short session", cfg.TailWindow.BarCount),
		})
	}

	if cfg.Rolling() && cfg.TailRatioMode.Days > 60 {
		warnings = append(warnings, Warning{
			Code:    "LONG_ROLLING_WINDOW",
			Message: fmt.Sprintf("rolling window of %d days smooths over regime changes", cfg.TailRatioMode.Days),
		})
	}

	if cfg.FirstReturn == FirstReturnZero {
		warnings = append(warnings, Warning{
			Code:    "ZERO_FIRST_RETURN",
			Message: "first return = 0 biases skewness and downside ratio on short days",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateHHMM(s string) error {
	if !hhmmPattern.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

func hhmmMinutes(s string) int {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}
