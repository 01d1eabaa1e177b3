package temperature

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/notifications"
)

// Notifier interface for sending notifications
type Notifier interface {
	Send(title, message string) error
}

type Options struct {
	PollInterval time.Duration
	Retries      int
	RetryDelay   time.Duration
	MaxDelta     float64
	MaxAnomalies int
	HistorySize  int
	// label used in notifications
	SensorID string
}

// Service polls one sensor, filters its readings and delivers them to the
// controller. nil is delivered while the sensor is disabled.
type Service struct {
	reader   Reader
	filter   *Filter
	opts     Options
	notifier Notifier
	now      func() time.Time
}

func NewService(reader Reader, opts Options) *Service {
	return NewServiceWithNotifier(reader, opts, &realNotifier{})
}

// NewServiceWithNotifier creates a service with an injectable notifier for testing
func NewServiceWithNotifier(reader Reader, opts Options, notifier Notifier) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Service{
		reader:   reader,
		filter:   NewFilter(opts.MaxDelta, opts.MaxAnomalies, opts.HistorySize),
		opts:     opts,
		notifier: notifier,
		now:      time.Now,
	}
}

type realNotifier struct{}

// Send hands the alert to ntfy in the background so a slow endpoint never
// delays the next poll.
func (r *realNotifier) Send(title, message string) error {
	notifications.SendAsync(notifications.Message{
		Title:    title,
		Message:  message,
		Priority: notifications.PriorityHigh,
		Tags:     []string{"thermometer"},
	})
	return nil
}

// ReadOnce takes a single filtered reading, for seeding the controller at
// startup. nil means no usable reading.
func (s *Service) ReadOnce() *float64 {
	return s.poll()
}

// Run polls until ctx is cancelled, handing each result to deliver.
// Rejected readings are not delivered; the controller keeps the last one.
func (s *Service) Run(ctx context.Context, deliver func(*float64)) {
	log.Info().
		Str("sensor_id", s.opts.SensorID).
		Dur("interval", s.opts.PollInterval).
		Msg("Starting temperature reading service")

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Temperature reading service stopped")
			return
		case <-ticker.C:
			s.tick(deliver)
		}
	}
}

func (s *Service) tick(deliver func(*float64)) {
	temp := s.poll()
	// a disabled sensor keeps delivering unknown so the controller stays OFF
	if temp != nil || s.filter.Disabled() {
		deliver(temp)
	}
}

// poll returns the accepted reading, or nil when it was rejected or the
// sensor is disabled.
func (s *Service) poll() *float64 {
	temp, err := ReadWithRetries(s.reader, s.opts.Retries, s.opts.RetryDelay)
	if err != nil {
		log.Error().Err(err).Str("sensor_id", s.opts.SensorID).Msg("Temperature sensor read failed")
		s.handleEvent(s.filter.Fail(), 0)
		return nil
	}

	accepted, event := s.filter.Process(temp, s.now())
	s.handleEvent(event, temp)

	if !accepted {
		log.Warn().
			Str("sensor_id", s.opts.SensorID).
			Float64("temp", temp).
			Int("anomalies", s.filter.AnomalyCount()).
			Msg("Temperature reading rejected as anomalous")
		return nil
	}

	log.Debug().Str("sensor_id", s.opts.SensorID).Float64("temp", temp).Msg("Temperature reading accepted")
	return &temp
}

func (s *Service) handleEvent(event Event, temp float64) {
	switch event {
	case EventDisabled:
		log.Error().
			Str("sensor_id", s.opts.SensorID).
			Float64("temp", temp).
			Msg("Temperature sensor disabled, climate control forced off")
		s.send("Climate Sensor Failure", fmt.Sprintf("[Sensor Disabled] %s: %.1f°C (%d anomalies, last good: %.1f°C). Climate control is off.",
			s.opts.SensorID, temp, s.opts.MaxAnomalies, s.filter.LastGood().Temperature))
	case EventRecovered:
		s.send("Climate Sensor Recovery", fmt.Sprintf("[Sensor Recovered] %s: %.1f°C (%d consecutive good readings)",
			s.opts.SensorID, temp, s.opts.MaxAnomalies))
	}
}

func (s *Service) send(title, message string) {
	if err := s.notifier.Send(title, message); err != nil {
		log.Error().Err(err).Str("title", title).Msg("Failed to send sensor notification")
	}
}
