package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Candle represents one OHLC bar for a single symbol.
// Time is the bucket start in Unix seconds and is the unique key
// inside a candle series.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Timeframe is an exchange candle interval identifier, e.g. "15min".
type Timeframe string

const (
	TF1Min   Timeframe = "1min"
	TF5Min   Timeframe = "5min"
	TF15Min  Timeframe = "15min"
	TF30Min  Timeframe = "30min"
	TF1Hour  Timeframe = "1hour"
	TF4Hour  Timeframe = "4hour"
	TF1Day   Timeframe = "1day"
)

var tfDurations = map[Timeframe]time.Duration{
	TF1Min:  time.Minute,
	TF5Min:  5 * time.Minute,
	TF15Min: 15 * time.Minute,
	TF30Min: 30 * time.Minute,
	TF1Hour: time.Hour,
	TF4Hour: 4 * time.Hour,
	TF1Day:  24 * time.Hour,
}

// Duration returns the bar length of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	return tfDurations[tf]
}

// ParseTimeframe validates a timeframe string from config.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := tfDurations[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}
