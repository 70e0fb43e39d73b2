// Package mqtt wraps the paho client for the ingestor (Subscriber) and the
// operator CLI (Publisher).
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
)

var ErrStopped = errors.New("mqtt: client stopped")

// session tracks connection state for one paho client and owns its
// shutdown signal.
type session struct {
	client mqtt.Client
	broker string
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSession(logger *slog.Logger, broker string) *session {
	return &session{
		broker: broker,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// clientOptions builds paho options from cfg. onConnect runs after every
// successful (re)connect.
func (s *session) clientOptions(cfg config.Config, clientID string, onConnect func(mqtt.Client)) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(clientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	if cfg.MQTTTLS {
		tlsCfg, err := TLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	keepAlive := cfg.MQTTKeepAlive
	if keepAlive <= 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		s.logger.Info("mqtt connected", "broker", s.broker, "client_id", clientID)
		if onConnect != nil {
			onConnect(c)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		s.logger.Warn("mqtt connection lost", "broker", s.broker, "error", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.logger.Info("mqtt reconnecting", "broker", s.broker)
	})
	return opts, nil
}

// TLSConfig returns the client TLS settings: an optional CA bundle, an
// optional client certificate and the skip-verify switch.
func TLSConfig(cfg config.Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         cfg.MQTTBroker,
		InsecureSkipVerify: cfg.MQTTInsecureSkipVerify, //nolint:gosec // opt-in for self-signed lab brokers
	}

	if cfg.MQTTCAFile != "" {
		pem, err := os.ReadFile(cfg.MQTTCAFile)
		if err != nil {
			return nil, fmt.Errorf("read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("MQTT CA file %q contains no certificates", cfg.MQTTCAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.MQTTCertFile != "" || cfg.MQTTKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.MQTTCertFile, cfg.MQTTKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load MQTT client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// connect waits for the initial connection, honouring ctx and stop.
func (s *session) connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		// paho runs OnConnect on its own goroutine; do not wait for it.
		s.setConnected(true)
		return nil
	case <-ctx.Done():
		s.client.Disconnect(0)
		return ctx.Err()
	case <-s.stopCh:
		s.client.Disconnect(0)
		return ErrStopped
	}
}

// wait blocks until token completes, ctx ends or the session stops.
func (s *session) wait(ctx context.Context, token mqtt.Token, what string) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", what, ctx.Err())
	case <-s.stopCh:
		return ErrStopped
	}
}

func (s *session) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

func (s *session) stopped() <-chan struct{} {
	return s.stopCh
}

func (s *session) signalStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// stop signals shutdown and disconnects after quiesce milliseconds.
func (s *session) stop(quiesce uint) {
	s.signalStop()
	if s.client != nil {
		s.client.Disconnect(quiesce)
	}
	s.setConnected(false)
}

func (s *session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
