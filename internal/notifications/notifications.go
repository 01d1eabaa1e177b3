// Package notifications pushes operator alerts to an ntfy topic.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

var baseURL = "https://ntfy.sh"

// ntfy priorities, 3 is the server default.
const (
	PriorityDefault = 3
	PriorityHigh    = 4
	PriorityUrgent  = 5
)

// Message is the ntfy JSON publish body. Topic is filled in from Init.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

var (
	client      *http.Client
	topic       string
	initialized bool
)

// Init sets the topic alerts go to. An empty topic disables notifications.
func Init(ntfyTopic string) {
	if ntfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured, notifications disabled")
		initialized = false
		return
	}

	client = &http.Client{Timeout: 10 * time.Second}
	topic = ntfyTopic
	initialized = true

	log.Info().Str("topic", topic).Msg("Ntfy notifications initialized")
}

func Enabled() bool {
	return initialized
}

// Send publishes a plain message at default priority.
func Send(title, message string) error {
	return Publish(Message{Title: title, Message: message, Priority: PriorityDefault})
}

// Publish posts msg to the ntfy root endpoint, which routes JSON bodies by
// their topic field.
func Publish(msg Message) error {
	if !initialized {
		return fmt.Errorf("notifications not initialized")
	}
	msg.Topic = topic

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().Str("title", msg.Title).Int("priority", msg.Priority).Msg("Notification sent")
	return nil
}

// SendAsync publishes in the background and only logs failures.
func SendAsync(msg Message) {
	if !initialized {
		return
	}
	go func() {
		if err := Publish(msg); err != nil {
			log.Warn().Err(err).Str("title", msg.Title).Msg("Failed to send notification")
		}
	}()
}
