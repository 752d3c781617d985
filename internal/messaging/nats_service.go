package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/AlexandruDanCroitoriu/voicebridge/internal/events"
)

// NATSService broadcasts completed transcriptions for interested consumers
// (the portfolio UI, notification hooks). The service is optional: when no
// broker is reachable the pipeline keeps working, transcripts just are not
// broadcast.
type NATSService struct {
	conn          *nats.Conn
	url           string
	subject       string
	maxReconnect  int
	reconnectWait time.Duration
}

// Config for the NATS connection
type Config struct {
	URL           string
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// NewNATSService creates a new NATS service instance, not yet connected
func NewNATSService(cfg Config) *NATSService {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "voicebridge.transcripts"
	}
	if cfg.MaxReconnect == 0 {
		cfg.MaxReconnect = -1 // retry indefinitely
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	return &NATSService{
		url:           cfg.URL,
		subject:       cfg.Subject,
		maxReconnect:  cfg.MaxReconnect,
		reconnectWait: cfg.ReconnectWait,
	}
}

// Connect establishes connection to the NATS server
func (ns *NATSService) Connect() error {
	log.Printf("🔌 Connecting to NATS at %s", ns.url)

	opts := []nats.Option{
		nats.Name("voicebridge"),
		nats.ReconnectWait(ns.reconnectWait),
		nats.MaxReconnects(ns.maxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️  NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("🔄 NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("🔌 NATS connection closed")
		}),
	}

	conn, err := nats.Connect(ns.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	log.Printf("✅ Connected to NATS server at %s", conn.ConnectedUrl())
	return nil
}

// Connected reports whether a live broker connection exists
func (ns *NATSService) Connected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// PublishTranscription publishes a completed transcription event
func (ns *NATSService) PublishTranscription(event *events.TranscriptionEvent) error {
	if ns.conn == nil {
		return fmt.Errorf("not connected to NATS")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transcription event: %w", err)
	}

	if err := ns.conn.Publish(ns.subject, data); err != nil {
		return fmt.Errorf("failed to publish transcription event: %w", err)
	}

	log.Printf("📤 Published transcription event %s to %s", event.UUID, ns.subject)
	return nil
}

// Close shuts down the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		if err := ns.conn.Drain(); err != nil {
			log.Printf("⚠️  NATS drain failed: %v", err)
			ns.conn.Close()
		}
		ns.conn = nil
	}
}
