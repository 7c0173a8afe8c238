package featureconfig

import (
	"strconv"
	"time"
	_ "time/tzdata" // session zones resolve without a system tz database
)

// Tail window strategies
const (
	TailFixedBarCount = "fixed_bar_count"
	TailClockWindow   = "clock_window"
)

// Tail ratio modes
const (
	RatioSingleDay = "single_day"
	RatioRolling   = "rolling"
)

// Zero-volume tail ratio policies
const (
	ZeroVolumeUndefined = "undefined"
	ZeroVolumeZero      = "zero"
)

// First-return policies
const (
	FirstReturnDrop = "drop"
	FirstReturnZero = "zero"
)

// Correlation signals
const (
	CorrVolumeShare = "volume_share"
	CorrLogVolume   = "log_volume"
)

// Features는 일중 → 일별 피처 계산의 전체 설정
// ⭐ SSOT: 피처 정의의 모든 선택지는 여기서만
type Features struct {
	Version             string        `yaml:"version" json:"version"`
	Session             Session       `yaml:"session" json:"session"`
	TailWindow          TailWindow    `yaml:"tail_window" json:"tail_window"`
	TailRatioMode       TailRatioMode `yaml:"tail_ratio_mode" json:"tail_ratio_mode"`
	ZeroVolumeTailRatio string        `yaml:"zero_volume_tail_ratio" json:"zero_volume_tail_ratio"`
	FirstReturn         string        `yaml:"first_return" json:"first_return"`
	CorrSignal          string        `yaml:"corr_signal" json:"corr_signal"`
}

// Session 거래일 경계
type Session struct {
	Timezone string `yaml:"timezone" json:"timezone"` // IANA, bars are dated in this zone
}

// TailWindow 장 마감 구간 정의
type TailWindow struct {
	Kind     string `yaml:"kind" json:"kind"`
	BarCount int    `yaml:"bar_count,omitempty" json:"bar_count,omitempty"` // fixed_bar_count
	Start    string `yaml:"start,omitempty" json:"start,omitempty"`         // clock_window, HH:MM inclusive
	End      string `yaml:"end,omitempty" json:"end,omitempty"`             // clock_window, HH:MM inclusive
}

// TailRatioMode 단일일 또는 rolling 합산
type TailRatioMode struct {
	Kind string `yaml:"kind" json:"kind"`
	Days int    `yaml:"days,omitempty" json:"days,omitempty"`
}

// Default returns the reference configuration: last 6 bars, single-day
// ratio, undefined on zero volume, first return dropped.
// Days applies once tail_ratio_mode.kind is rolling.
func Default() Features {
	return Features{
		Version: "v1",
		Session: Session{Timezone: "Asia/Shanghai"},
		TailWindow: TailWindow{
			Kind:     TailFixedBarCount,
			BarCount: 6,
		},
		TailRatioMode:       TailRatioMode{Kind: RatioSingleDay, Days: 5},
		ZeroVolumeTailRatio: ZeroVolumeUndefined,
		FirstReturn:         FirstReturnDrop,
		CorrSignal:          CorrVolumeShare,
	}
}

// Location resolves the session timezone. Validate guarantees it loads.
func (f Features) Location() *time.Location {
	loc, err := time.LoadLocation(f.Session.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Rolling reports whether the rolling tail ratio is emitted
func (f Features) Rolling() bool {
	return f.TailRatioMode.Kind == RatioRolling
}

// ClockBounds returns the clock window as minutes after midnight
func (w TailWindow) ClockBounds() (start, end int) {
	return hhmmMinutes(w.Start), hhmmMinutes(w.End)
}

// RollingFeatureName is the output column name of the rolling variant
func (f Features) RollingFeatureName() string {
	return "tail_ratio_rolling_" + strconv.Itoa(f.TailRatioMode.Days) + "d"
}

// RunSnapshot 실행 시점의 피처 설정 기록 (재현성)
type RunSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml,omitempty"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
