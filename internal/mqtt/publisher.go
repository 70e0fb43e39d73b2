package mqtt

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
)

// Publisher sends payloads to the broker configured for the ingestor.
type Publisher struct {
	*session
}

func NewPublisher(cfg config.Config, clientID string, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{session: newSession(logger, cfg.MQTTBrokerURL())}
	opts, err := p.clientOptions(cfg, clientID, nil)
	if err != nil {
		return nil, err
	}
	p.client = mqtt.NewClient(opts)
	return p, nil
}

func (p *Publisher) Connect(ctx context.Context) error {
	return p.connect(ctx)
}

// Publish sends payload on topic with QoS 1 and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := p.client.Publish(topic, 1, false, payload)
	if err := p.wait(ctx, token, "publish to "+topic); err != nil {
		p.logger.Error("failed to publish", "topic", topic, "error", err)
		return err
	}
	p.logger.Debug("published", "topic", topic, "size", len(payload))
	return nil
}

// Disconnect closes the connection. Idempotent.
func (p *Publisher) Disconnect() {
	p.stop(250)
	p.logger.Info("mqtt publisher disconnected")
}
