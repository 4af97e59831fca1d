// Package detector
package detector

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
)

// Defaults for the crash scan.
const (
	DefaultThresholdPct = 0.03
	DefaultCooldown     = 5 * time.Minute
)

// TriggerEvent is one accepted crash on the reference instrument.
type TriggerEvent struct {
	Timestamp time.Time `json:"timestamp"`
	DropPct   float64   `json:"drop_pct"` // (low-open)/open, negative on a crash
}

// Detector scans candle sequences for sudden drops. It carries configuration
// only; Detect is stateless across calls.
type Detector struct {
	ThresholdPct float64
	Cooldown     time.Duration
}

func New(thresholdPct float64, cooldown time.Duration) *Detector {
	if thresholdPct <= 0 {
		thresholdPct = DefaultThresholdPct
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Detector{ThresholdPct: thresholdPct, Cooldown: cooldown}
}

// Detect scans an ordered candle sequence and returns accepted triggers in
// chronological order. A candle qualifies when its low is at least
// ThresholdPct below its open. After an accepted trigger, qualifying candles
// within Cooldown of the last accepted one are suppressed; suppressed candles
// do not reset the cooldown clock.
func (d *Detector) Detect(candles []candle.Candle) []TriggerEvent {
	var events []TriggerEvent
	var lastAccepted time.Time

	for _, c := range candles {
		if c.Open == 0 {
			continue
		}
		pctChange := (c.Low - c.Open) / c.Open
		if pctChange > -d.ThresholdPct {
			continue
		}

		if !lastAccepted.IsZero() && c.Timestamp.Sub(lastAccepted) < d.Cooldown {
			continue
		}

		events = append(events, TriggerEvent{Timestamp: c.Timestamp, DropPct: pctChange})
		lastAccepted = c.Timestamp

		log.WithFields(log.Fields{
			"symbol":   c.Symbol,
			"time":     c.Timestamp.Format(time.RFC3339),
			"drop_pct": pctChange * 100,
		}).Debug("crash trigger accepted")
	}

	return events
}
