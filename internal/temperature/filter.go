package temperature

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// DS18B20 power-on reset value and disconnected-bus value
const (
	powerOnReading      = 85.0
	disconnectedReading = -127.0
)

type Reading struct {
	Temperature float64
	Timestamp   time.Time
	Valid       bool
}

// ReadingHistory tracks recent readings for anomaly detection.
type ReadingHistory struct {
	Readings        []Reading
	MaxSize         int
	AnomalyCount    int
	RecoveryCount   int // consecutive good readings while disabled
	Disabled        bool
	DisabledAt      time.Time
	LastGoodReading Reading
}

// Filter rejects readings that jump by more than maxDelta from the last good
// one and disables the sensor after maxAnomalies consecutive rejects.
type Filter struct {
	history      ReadingHistory
	maxDelta     float64
	maxAnomalies int
}

func NewFilter(maxDelta float64, maxAnomalies, historySize int) *Filter {
	if historySize < maxAnomalies+3 {
		historySize = maxAnomalies + 3
	}
	return &Filter{
		history:      ReadingHistory{Readings: make([]Reading, 0, historySize), MaxSize: historySize},
		maxDelta:     maxDelta,
		maxAnomalies: maxAnomalies,
	}
}

func (f *Filter) Disabled() bool {
	return f.history.Disabled
}

func (f *Filter) AnomalyCount() int {
	return f.history.AnomalyCount
}

func (f *Filter) LastGood() Reading {
	return f.history.LastGoodReading
}

// Event reports a change in the sensor's enabled state.
type Event int

const (
	EventNone Event = iota
	EventDisabled
	EventRecovered
)

func validTemperature(temp float64) bool {
	return temp != powerOnReading && temp > disconnectedReading && temp >= -55 && temp <= 125
}

// Fail records a read that produced no value at all.
func (f *Filter) Fail() Event {
	f.history.RecoveryCount = 0
	if f.history.Disabled {
		return EventNone
	}
	f.history.AnomalyCount++
	return f.checkDisableThreshold()
}

// Process runs one reading through the filter and reports whether it was accepted.
func (f *Filter) Process(temp float64, ts time.Time) (bool, Event) {
	h := &f.history
	reading := Reading{Temperature: temp, Timestamp: ts, Valid: validTemperature(temp)}

	if !reading.Valid {
		return false, f.Fail()
	}

	// bootstrap: accept until there is enough history to judge against
	if len(h.Readings) < f.maxAnomalies {
		h.Readings = append(h.Readings, reading)
		h.LastGoodReading = reading
		if len(h.Readings) == f.maxAnomalies {
			f.analyzeBootstrapHistory()
		}
		return true, EventNone
	}

	if h.Disabled {
		if !f.isGoodReading(temp) {
			h.RecoveryCount = 0
			return false, EventNone
		}
		f.addToHistory(reading)
		h.RecoveryCount++
		if h.RecoveryCount < f.maxAnomalies {
			return false, EventNone
		}
		h.Disabled = false
		h.AnomalyCount = 0
		h.RecoveryCount = 0
		h.LastGoodReading = reading
		log.Info().Float64("temp", temp).Msg("Sensor recovered and re-enabled")
		return true, EventRecovered
	}

	if !f.isGoodReading(temp) {
		// anomalous readings stay in history for pattern detection
		f.addToHistory(reading)

		if f.detectStableNewBaseline() {
			h.AnomalyCount = 0
			h.LastGoodReading = reading
			log.Info().Float64("temp", temp).Msg("Stable new baseline detected, accepting temperature")
			return true, EventNone
		}

		h.AnomalyCount++
		return false, f.checkDisableThreshold()
	}

	h.AnomalyCount = 0
	h.RecoveryCount = 0
	h.LastGoodReading = reading
	f.addToHistory(reading)
	return true, EventNone
}

func (f *Filter) isGoodReading(temp float64) bool {
	if !f.history.LastGoodReading.Valid {
		return true
	}
	return math.Abs(temp-f.history.LastGoodReading.Temperature) <= f.maxDelta
}

// detectStableNewBaseline accepts a jump once the last three readings agree,
// e.g. after a window is opened.
func (f *Filter) detectStableNewBaseline() bool {
	h := &f.history
	if h.AnomalyCount < 1 || len(h.Readings) < f.maxAnomalies+2 {
		return false
	}

	recent := h.Readings[len(h.Readings)-3:]
	var sum float64
	for _, r := range recent {
		sum += r.Temperature
	}
	mean := sum / float64(len(recent))

	var variance float64
	for _, r := range recent {
		variance += (r.Temperature - mean) * (r.Temperature - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(recent)))

	// the earliest of the three must itself be part of the new level
	if math.Abs(recent[0].Temperature-h.LastGoodReading.Temperature) <= f.maxDelta {
		return false
	}
	return stdDev < 0.5
}

// analyzeBootstrapHistory picks the most recent non-outlier as the baseline.
func (f *Filter) analyzeBootstrapHistory() {
	h := &f.history
	var sum float64
	for _, r := range h.Readings {
		sum += r.Temperature
	}
	mean := sum / float64(len(h.Readings))

	var variance float64
	for _, r := range h.Readings {
		variance += (r.Temperature - mean) * (r.Temperature - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(h.Readings)))

	anomalies := 0
	baseline := Reading{Temperature: mean, Timestamp: time.Now(), Valid: true}
	found := false
	for i := len(h.Readings) - 1; i >= 0; i-- {
		r := h.Readings[i]
		if stdDev > 0 && math.Abs(r.Temperature-mean) > 2*stdDev {
			anomalies++
		} else if !found {
			baseline = r
			found = true
		}
	}

	h.LastGoodReading = baseline
	if anomalies > 0 {
		log.Info().
			Int("anomalies_found", anomalies).
			Float64("baseline_temp", baseline.Temperature).
			Msg("Bootstrap analysis complete")
	}
}

// addToHistory adds a reading to the circular buffer
func (f *Filter) addToHistory(reading Reading) {
	h := &f.history
	if len(h.Readings) >= h.MaxSize {
		h.Readings = h.Readings[1:]
	}
	h.Readings = append(h.Readings, reading)
}

func (f *Filter) checkDisableThreshold() Event {
	h := &f.history
	if h.AnomalyCount >= f.maxAnomalies && !h.Disabled {
		h.Disabled = true
		h.DisabledAt = time.Now()
		h.RecoveryCount = 0
		return EventDisabled
	}
	return EventNone
}
