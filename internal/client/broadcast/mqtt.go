package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

const (
	mqttQoS            = 0
	mqttPublishTimeout = 5 * time.Second
	mqttConnectTimeout = 30 * time.Second
	mqttDisconnectWait = 250
)

// ConnectMQTT connects to broker with automatic reconnects.
func ConnectMQTT(ctx context.Context, broker, clientID string, logger logging.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info(context.Background(), "connected to broadcast broker", "broker", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn(context.Background(), "broadcast broker connection lost", "broker", broker, "error", err)
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()

	timeout := mqttConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		c.Disconnect(mqttDisconnectWait)
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return c, nil
}

// MQTTOpener opens channels as topics on a connected MQTT client. The broker
// echoes posts back to the sender; the Broadcaster drops its own messages by
// sender id.
func MQTTOpener(c mqtt.Client) Opener {
	return func(name string) (Channel, error) {
		return OpenMQTT(c, name)
	}
}

// MQTTChannel is a Channel on one MQTT topic.
type MQTTChannel struct {
	client mqtt.Client
	topic  string

	mu     sync.Mutex
	closed bool
	nextID uint64
	subs   map[uint64]func([]byte)
}

// OpenMQTT subscribes to topic and returns the channel.
func OpenMQTT(c mqtt.Client, topic string) (*MQTTChannel, error) {
	if c == nil || !c.IsConnectionOpen() {
		return nil, errors.New("mqtt client not connected")
	}
	ch := &MQTTChannel{client: c, topic: topic, subs: make(map[uint64]func([]byte))}
	token := c.Subscribe(topic, mqttQoS, ch.onMessage)
	if err := wait(token); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return ch, nil
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.New("timeout")
	}
	return token.Error()
}

func (ch *MQTTChannel) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	fns := make([]func([]byte), 0, len(ch.subs))
	for _, fn := range ch.subs {
		fns = append(fns, fn)
	}
	ch.mu.Unlock()

	for _, fn := range fns {
		fn(msg.Payload())
	}
}

func (ch *MQTTChannel) Post(data []byte) error {
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := wait(ch.client.Publish(ch.topic, mqttQoS, false, data)); err != nil {
		return fmt.Errorf("publish %s: %w", ch.topic, err)
	}
	return nil
}

func (ch *MQTTChannel) Subscribe(fn func([]byte)) func() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.nextID++
	id := ch.nextID
	ch.subs[id] = fn
	return func() {
		ch.mu.Lock()
		delete(ch.subs, id)
		ch.mu.Unlock()
	}
}

// Close unsubscribes from the topic. The client stays connected.
func (ch *MQTTChannel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.subs = nil
	ch.mu.Unlock()

	if err := wait(ch.client.Unsubscribe(ch.topic)); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", ch.topic, err)
	}
	return nil
}
