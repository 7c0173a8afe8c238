package contracts

import "context"

// CalendarProvider supplies trading dates per exchange
// ⭐ SSOT: "which dates count" is answered only through this interface
type CalendarProvider interface {
	TradingDays(exchange string, start, end Date) ([]Date, error)
}

// SuspensionIndex supplies full-halt dates per instrument
type SuspensionIndex interface {
	SuspendedDays(instrumentID string, start, end Date) []Date
}

// CalendarSource loads raw calendar rows (file, database, cache)
type CalendarSource interface {
	LoadCalendar(ctx context.Context, exchange string) ([]CalendarEntry, error)
}

// SuspensionSource loads raw suspension rows
type SuspensionSource interface {
	LoadSuspensions(ctx context.Context, start, end Date) ([]SuspensionRecord, error)
}

// WeightSource loads sparse weight rows for one group
type WeightSource interface {
	LoadWeights(ctx context.Context, groupID string) ([]WeightRecord, error)
}

// QuoteSource loads daily quotes for a set of instruments
type QuoteSource interface {
	LoadQuotes(ctx context.Context, instrumentIDs []string, start, end Date) ([]DailyQuote, error)
}

// FeatureSink persists daily feature rows
type FeatureSink interface {
	WriteFeatures(ctx context.Context, records []DailyFeatureRecord) error
}

// CompletenessSink persists completeness reports and their summary
type CompletenessSink interface {
	WriteCompleteness(ctx context.Context, runID string, reports []CompletenessReport, summary CompletenessSummary) error
}

// WeightSink persists dense weight rows
type WeightSink interface {
	WriteWeights(ctx context.Context, records []DenseWeightRecord) error
}
