package shutdown

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/notifications"
)

// ExitFunc terminates the process; replaced in tests.
var ExitFunc = os.Exit

var (
	mu       sync.Mutex
	cleanups []func()
	once     sync.Once
)

// Register adds fn to the hooks run on shutdown, most recent first.
// Relays register their release here so a fatal error never leaves one energised.
func Register(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	cleanups = append(cleanups, fn)
}

// Reset drops every registered hook.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cleanups = nil
	once = sync.Once{}
}

func runCleanups() {
	once.Do(func() {
		mu.Lock()
		hooks := make([]func(), len(cleanups))
		copy(hooks, cleanups)
		mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			hooks[i]()
		}
		log.Info().Int("hooks", len(hooks)).Msg("Climate relays released")
	})
}

// Release runs the hooks without exiting, for an orderly stop.
func Release() {
	runCleanups()
}

func Shutdown() {
	runCleanups()
	ExitFunc(0)
}

// ShutdownWithError releases the relays, sends an urgent alert when ntfy is
// configured, and exits non-zero.
func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	runCleanups()
	if notifications.Enabled() {
		alert := notifications.Message{
			Title:    "Climate Controller Halted",
			Message:  fmt.Sprintf("%s: %v. Relays released.", msg, err),
			Priority: notifications.PriorityUrgent,
			Tags:     []string{"rotating_light"},
		}
		if nerr := notifications.Publish(alert); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send shutdown alert")
		}
	}
	ExitFunc(1)
}
