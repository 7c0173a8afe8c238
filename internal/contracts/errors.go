package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks
var (
	// ErrConfiguration aborts a run: nothing meaningful can be computed
	ErrConfiguration = errors.New("configuration error")

	// ErrDataIntegrity fails one instrument's report; the batch continues
	ErrDataIntegrity = errors.New("data integrity error")

	// ErrWorkerFailure marks a unit that failed inside the harness
	ErrWorkerFailure = errors.New("worker failure")
)

// ConfigurationError describes a missing or invalid reference input
// (unknown exchange, empty calendar, bad feature config)
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %s", e.Message)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// Is matches ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// DataIntegrityError is raised when observed dates fall on non-trading days
type DataIntegrityError struct {
	InstrumentID string
	ExtraDates   []Date
}

func (e *DataIntegrityError) Error() string {
	shown := e.ExtraDates
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, len(shown))
	for i, d := range shown {
		parts[i] = d.String()
	}
	suffix := ""
	if len(e.ExtraDates) > len(shown) {
		suffix = ", ..."
	}
	return fmt.Sprintf("%s: %d observed dates are not trading days [%s%s]",
		e.InstrumentID, len(e.ExtraDates), strings.Join(parts, ", "), suffix)
}

// Is matches ErrDataIntegrity
func (e *DataIntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}

// ComputationWarning is a non-fatal degenerate statistic.
// It is logged, never returned as an error.
type ComputationWarning struct {
	InstrumentID string
	Date         Date
	Feature      string
	Reason       string
}

func (w ComputationWarning) String() string {
	return fmt.Sprintf("%s %s %s: %s", w.InstrumentID, w.Date, w.Feature, w.Reason)
}

// WorkerFailure wraps anything that went wrong inside one harness unit
type WorkerFailure struct {
	UnitID string
	Err    error
	Panic  bool
}

func (e *WorkerFailure) Error() string {
	if e.Panic {
		return fmt.Sprintf("unit %s panicked: %v", e.UnitID, e.Err)
	}
	return fmt.Sprintf("unit %s: %v", e.UnitID, e.Err)
}

func (e *WorkerFailure) Unwrap() error {
	return e.Err
}

// Is matches ErrWorkerFailure
func (e *WorkerFailure) Is(target error) bool {
	return target == ErrWorkerFailure
}
