package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Sink accepts every engine output
type Sink interface {
	contracts.FeatureSink
	contracts.CompletenessSink
	contracts.WeightSink
	WriteBreadth(ctx context.Context, records []contracts.BreadthRecord) error
	WriteMembership(ctx context.Context, records []contracts.MembershipSnapshot) error
}

var (
	_ Sink = (*FileStore)(nil)
	_ Sink = (*PostgresStore)(nil)

	_ contracts.CalendarSource   = (*PostgresStore)(nil)
	_ contracts.SuspensionSource = (*PostgresStore)(nil)
	_ contracts.WeightSource     = (*PostgresStore)(nil)
	_ contracts.QuoteSource      = (*PostgresStore)(nil)
	_ contracts.WeightSource     = WeightFile{}
	_ contracts.QuoteSource      = QuoteFile{}
)

// NewSink picks the writer for format. pool is required only for postgres.
func NewSink(format, dir string, pool *pgxpool.Pool) (Sink, error) {
	if format == FormatPostgres {
		if pool == nil {
			return nil, &contracts.ConfigurationError{Field: "DATABASE_URL", Message: "required for postgres output"}
		}
		return NewPostgresStore(pool), nil
	}
	return NewFileStore(dir, format)
}
