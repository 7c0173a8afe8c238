package featureconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/contracts"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))

	assert.Equal(t, TailFixedBarCount, cfg.TailWindow.Kind)
	assert.Equal(t, 6, cfg.TailWindow.BarCount)
	assert.False(t, cfg.Rolling())
	assert.Equal(t, "Asia/Shanghai", cfg.Location().String())
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
version: v2
tail_ratio_mode:
  kind: rolling
`))
	require.NoError(t, err)

	assert.Equal(t, "v2", cfg.Version)
	assert.True(t, cfg.Rolling())
	assert.Equal(t, 5, cfg.TailRatioMode.Days, "rolling days default")
	assert.Equal(t, "tail_ratio_rolling_5d", cfg.RollingFeatureName())
	assert.Equal(t, 6, cfg.TailWindow.BarCount)
	assert.Equal(t, FirstReturnDrop, cfg.FirstReturn)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("version: v1\ntail_windw:\n  kind: clock_window\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestParse_ClockWindow(t *testing.T) {
	cfg, err := Parse([]byte(`
tail_window:
  kind: clock_window
  start: "14:30"
  end: "15:00"
`))
	require.NoError(t, err)

	start, end := cfg.TailWindow.ClockBounds()
	assert.Equal(t, 14*60+30, start)
	assert.Equal(t, 15*60, end)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Features)
		field  string
	}{
		{"missing version", func(f *Features) { f.Version = "" }, "version"},
		{"bad timezone", func(f *Features) { f.Session.Timezone = "Mars/Olympus" }, "session.timezone"},
		{"zero bar count", func(f *Features) { f.TailWindow.BarCount = 0 }, "tail_window.bar_count"},
		{"unknown tail kind", func(f *Features) { f.TailWindow.Kind = "last_hour" }, "tail_window.kind"},
		{"bad clock format", func(f *Features) {
			f.TailWindow = TailWindow{Kind: TailClockWindow, Start: "2:30", End: "15:00"}
		}, "tail_window.start"},
		{"inverted clock window", func(f *Features) {
			f.TailWindow = TailWindow{Kind: TailClockWindow, Start: "15:00", End: "14:30"}
		}, "tail_window"},
		{"zero rolling days", func(f *Features) { f.TailRatioMode = TailRatioMode{Kind: RatioRolling} }, "tail_ratio_mode.days"},
		{"negative rolling days", func(f *Features) { f.TailRatioMode = TailRatioMode{Kind: RatioRolling, Days: -1} }, "tail_ratio_mode.days"},
		{"unknown ratio mode", func(f *Features) { f.TailRatioMode.Kind = "ewm" }, "tail_ratio_mode.kind"},
		{"zero volume policy", func(f *Features) { f.ZeroVolumeTailRatio = "nan" }, "zero_volume_tail_ratio"},
		{"first return policy", func(f *Features) { f.FirstReturn = "keep" }, "first_return"},
		{"corr signal", func(f *Features) { f.CorrSignal = "turnover" }, "corr_signal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, errors.Is(err, contracts.ErrConfiguration))
		})
	}
}

func TestValidate_HashStable(t *testing.T) {
	cfg := Default()
	cfg.TailRatioMode.Kind = RatioRolling
	before, err := Hash(&cfg)
	require.NoError(t, err)
	snapshot := cfg

	require.NoError(t, Validate(&cfg))

	after, err := Hash(&cfg)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, snapshot, cfg)
	assert.Equal(t, 5, cfg.TailRatioMode.Days)
}

func TestLoad_FileAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	yamlData := []byte("version: v1\ncorr_signal: log_volume\n")
	require.NoError(t, os.WriteFile(path, yamlData, 0o644))

	cfg, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, yamlData, raw)
	assert.Equal(t, CorrLogVolume, cfg.CorrSignal)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)

	def := Default()
	defHash, _ := Hash(&def)
	assert.NotEqual(t, defHash, hash)

	snap, err := NewRunSnapshot(cfg, raw)
	require.NoError(t, err)
	assert.Equal(t, hash, snap.ConfigHash)
	assert.Equal(t, "v1", snap.Version)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, raw, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, Default(), *cfg)
}

func TestWarn(t *testing.T) {
	cfg := Default()
	assert.Empty(t, Warn(&cfg))

	cfg.TailWindow.BarCount = 20
	cfg.FirstReturn = FirstReturnZero
	codes := []string{}
	for _, w := range Warn(&cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"WIDE_TAIL_WINDOW", "ZERO_FIRST_RETURN"}, codes)
}
