package contracts

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    Date
		wantErr bool
	}{
		{"2024-01-02", NewDate(2024, time.January, 2), false},
		{"20240102", NewDate(2024, time.January, 2), false},
		{"2024/01/02", NewDate(2024, time.January, 2), false},
		{"2024-01-02 14:35:00", NewDate(2024, time.January, 2), false},
		{" 2024-12-31 ", NewDate(2024, time.December, 31), false},
		{"2024-13-01", 0, true},
		{"240102", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_Formats(t *testing.T) {
	d := NewDate(2023, time.March, 7)

	assert.Equal(t, "2023-03-07", d.String())
	assert.Equal(t, "20230307", d.Compact())
	assert.Equal(t, time.Date(2023, 3, 7, 0, 0, 0, 0, time.UTC), d.Time())
	assert.Equal(t, NewDate(2023, time.March, 1), d.AddDays(-6))
	assert.Equal(t, NewDate(2023, time.April, 1), NewDate(2023, time.March, 31).AddDays(1))

	var zero Date
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.String())
}

func TestDate_TextRoundTrip(t *testing.T) {
	d := MustParseDate("20240229")

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", string(b))

	var back Date
	require.NoError(t, back.UnmarshalText([]byte("2024-02-29")))
	assert.Equal(t, d, back)
}

func TestDateSet_Sorted(t *testing.T) {
	s := NewDateSet(MustParseDate("2024-01-05"), MustParseDate("2024-01-02"))
	s.Add(MustParseDate("2024-01-03"))

	assert.True(t, s.Has(MustParseDate("2024-01-03")))
	assert.False(t, s.Has(MustParseDate("2024-01-04")))
	assert.Equal(t, []Date{
		MustParseDate("2024-01-02"),
		MustParseDate("2024-01-03"),
		MustParseDate("2024-01-05"),
	}, s.Sorted())
}

func TestValue(t *testing.T) {
	assert.False(t, Some(math.NaN()).Valid)
	assert.False(t, Some(math.Inf(1)).Valid)
	assert.Nil(t, Undefined.Ptr())
	assert.Equal(t, "", Undefined.String())

	v := Some(0.75)
	require.NotNil(t, v.Ptr())
	assert.Equal(t, 0.75, *v.Ptr())
	assert.Equal(t, "0.75", v.String())
}

func TestErrors_Is(t *testing.T) {
	cfgErr := fmt.Errorf("load: %w", &ConfigurationError{Field: "exchange", Message: "unknown exchange SZX"})
	assert.True(t, errors.Is(cfgErr, ErrConfiguration))
	assert.False(t, errors.Is(cfgErr, ErrDataIntegrity))

	integrity := &DataIntegrityError{
		InstrumentID: "600000.SH",
		ExtraDates:   []Date{MustParseDate("2024-01-06")},
	}
	assert.True(t, errors.Is(integrity, ErrDataIntegrity))
	assert.Contains(t, integrity.Error(), "2024-01-06")

	inner := errors.New("boom")
	wf := &WorkerFailure{UnitID: "000001.SZ", Err: inner}
	assert.True(t, errors.Is(wf, ErrWorkerFailure))
	assert.True(t, errors.Is(wf, inner))
}

func TestBar_TypicalPrice(t *testing.T) {
	b := Bar{High: 12, Low: 9, Close: 9}
	assert.InDelta(t, 10.0, b.TypicalPrice(), 1e-12)
}

func TestSuspensionRecord_IsFullHalt(t *testing.T) {
	assert.True(t, SuspensionRecord{Type: "S"}.IsFullHalt())
	assert.False(t, SuspensionRecord{Type: "R"}.IsFullHalt())
	assert.False(t, SuspensionRecord{}.IsFullHalt())
}
