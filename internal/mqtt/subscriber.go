package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
)

const (
	subscribeQoS  = byte(1)
	subAckFailure = byte(0x80)
)

var ErrSubscriptionRefused = errors.New("mqtt: subscription refused by broker")

// Message is one publication received on the subscribed topic.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Subscriber delivers messages from one topic into a bounded channel. The
// paho callback blocks while the channel is full, so a slow consumer slows
// the broker session instead of dropping messages.
type Subscriber struct {
	*session
	topic string
	msgs  chan Message
	now   func() time.Time

	ready     chan struct{}
	readyOnce sync.Once
	// failed carries the first subscribe failure to a waiting Connect.
	failed chan error
}

func NewSubscriber(cfg config.Config, logger *slog.Logger) (*Subscriber, error) {
	buffer := cfg.IngestorBuffer
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscriber{
		session: newSession(logger, cfg.MQTTBrokerURL()),
		topic:   cfg.MQTTTopic,
		msgs:    make(chan Message, buffer),
		now:     time.Now,
		ready:   make(chan struct{}),
		failed:  make(chan error, 1),
	}

	// The session is clean, so the subscription is renewed on every connect.
	opts, err := s.clientOptions(cfg, cfg.MQTTClientID, func(c mqtt.Client) { s.subscribe(c) })
	if err != nil {
		return nil, err
	}
	s.client = mqtt.NewClient(opts)
	return s, nil
}

// Messages is the receive side of the delivery channel. It is never closed;
// consumers stop on their own context.
func (s *Subscriber) Messages() <-chan Message {
	return s.msgs
}

// Topic returns the subscribed topic.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Connect connects and waits until the first subscription is acknowledged.
func (s *Subscriber) Connect(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	select {
	case <-s.ready:
		return nil
	case err := <-s.failed:
		s.client.Disconnect(0)
		return err
	case <-ctx.Done():
		s.client.Disconnect(0)
		return ctx.Err()
	case <-s.stopCh:
		return ErrStopped
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) {
	token := c.Subscribe(s.topic, subscribeQoS, func(_ mqtt.Client, msg mqtt.Message) {
		s.deliver(msg.Topic(), msg.Payload())
	})
	var err error
	if !token.WaitTimeout(10 * time.Second) {
		err = fmt.Errorf("subscribe %s: timeout", s.topic)
	} else if err = token.Error(); err != nil {
		err = fmt.Errorf("subscribe %s: %w", s.topic, err)
	} else if st, ok := token.(*mqtt.SubscribeToken); ok {
		err = checkSubAck(st.Result(), s.topic)
	}
	s.subscribed(err)
}

// subscribed records the outcome of a subscribe attempt.
func (s *Subscriber) subscribed(err error) {
	if err != nil {
		s.logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
		select {
		case s.failed <- err:
		default:
		}
		return
	}
	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", subscribeQoS)
	s.readyOnce.Do(func() { close(s.ready) })
}

// checkSubAck turns the SUBACK return code for topic into an error. 0x80
// is the broker refusing the subscription.
func checkSubAck(codes map[string]byte, topic string) error {
	code, ok := codes[topic]
	if !ok {
		return fmt.Errorf("subscribe %s: no SUBACK code for topic", topic)
	}
	if code == subAckFailure {
		return fmt.Errorf("subscribe %s: %w", topic, ErrSubscriptionRefused)
	}
	if code > subscribeQoS {
		return fmt.Errorf("subscribe %s: unexpected SUBACK code %#x", topic, code)
	}
	return nil
}

// deliver hands one payload to the consumer, blocking until there is room
// or the subscriber stops. The payload is copied because paho may reuse it.
func (s *Subscriber) deliver(topic string, payload []byte) bool {
	m := Message{
		Topic:      topic,
		Payload:    append([]byte(nil), payload...),
		ReceivedAt: s.now().UTC(),
	}
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))
	select {
	case s.msgs <- m:
		return true
	case <-s.stopped():
		return false
	}
}

// Disconnect unsubscribes and closes the connection. Idempotent.
func (s *Subscriber) Disconnect() {
	// Release a callback blocked in deliver before unsubscribing.
	s.signalStop()
	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.topic)
		token.WaitTimeout(2 * time.Second)
	}
	s.stop(250)
	s.logger.Info("mqtt subscriber disconnected", "topic", s.topic)
}
