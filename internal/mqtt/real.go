package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/config"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

// RealClient publishes to an actual MQTT broker and listens for commands.
type RealClient struct {
	client  paho.Client
	topics  Topics
	handler CommandHandler
	traits  thermostat.Traits
}

// NewRealClient connects to the broker and subscribes to the command topics.
func NewRealClient(cfg config.MQTT, traits thermostat.Traits, handler CommandHandler) (*RealClient, error) {
	c := &RealClient{
		topics:  NewTopics(cfg.TopicPrefix),
		handler: handler,
		traits:  traits,
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("climate-controller-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(c.topics.Availability(), "offline", 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	log.Info().Str("broker", cfg.Broker).Str("prefix", cfg.TopicPrefix).Msg("MQTT connected")
	return c, nil
}

// onConnect runs on every (re)connect, so subscriptions survive broker restarts.
func (c *RealClient) onConnect(client paho.Client) {
	filters := map[string]byte{}
	for _, field := range CommandFields {
		filters[c.topics.Command(field)] = 1
	}
	if token := client.SubscribeMultiple(filters, c.onMessage); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Error().Err(token.Error()).Msg("Failed to subscribe to MQTT command topics")
	}

	client.Publish(c.topics.Availability(), 1, true, "online")
	if traits, err := json.Marshal(c.traits); err == nil {
		client.Publish(c.topics.Traits(), 1, true, traits)
	}
}

func (c *RealClient) onMessage(_ paho.Client, msg paho.Message) {
	field, ok := c.topics.FieldFromCommandTopic(msg.Topic())
	if !ok {
		return
	}
	call, err := ParseCommand(field, msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Ignoring MQTT command")
		return
	}
	log.Info().Str("topic", msg.Topic()).Str("payload", string(msg.Payload())).Msg("MQTT command received")
	c.handler(call)
}

// PublishState sends the state document and every per-field value, retained.
func (c *RealClient) PublishState(state thermostat.State) error {
	payload, err := FormatState(state, time.Now())
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}
	if err := c.publish(c.topics.State(), payload); err != nil {
		return err
	}
	for field, value := range FieldValues(state) {
		if err := c.publish(c.topics.Field(field), []byte(value)); err != nil {
			return err
		}
	}
	return nil
}

func (c *RealClient) publish(topic string, payload []byte) error {
	// QoS 1, retained so late subscribers see the current state
	token := c.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close marks the device offline and disconnects from the broker.
func (c *RealClient) Close() error {
	token := c.client.Publish(c.topics.Availability(), 1, true, "offline")
	token.WaitTimeout(time.Second)
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
