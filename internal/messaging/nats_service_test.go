package messaging

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNewNATSService_Defaults(t *testing.T) {
	ns := NewNATSService(Config{})

	if ns.url != nats.DefaultURL {
		t.Errorf("Expected default URL %q, got %q", nats.DefaultURL, ns.url)
	}
	if ns.subject != "voicebridge.transcripts" {
		t.Errorf("Expected default subject, got %q", ns.subject)
	}
	if ns.maxReconnect != -1 {
		t.Errorf("Expected unlimited reconnects by default, got %d", ns.maxReconnect)
	}
	if ns.reconnectWait != 2*time.Second {
		t.Errorf("Expected 2s default reconnect wait, got %v", ns.reconnectWait)
	}
}

func TestNewNATSService_ConfiguredReconnects(t *testing.T) {
	ns := NewNATSService(Config{
		URL:           "nats://broker:4222",
		Subject:       "custom.subject",
		MaxReconnect:  10,
		ReconnectWait: 5 * time.Second,
	})

	if ns.url != "nats://broker:4222" {
		t.Errorf("Expected configured URL, got %q", ns.url)
	}
	if ns.subject != "custom.subject" {
		t.Errorf("Expected configured subject, got %q", ns.subject)
	}
	if ns.maxReconnect != 10 {
		t.Errorf("Expected configured max reconnects 10, got %d", ns.maxReconnect)
	}
	if ns.reconnectWait != 5*time.Second {
		t.Errorf("Expected configured reconnect wait 5s, got %v", ns.reconnectWait)
	}
}

func TestNATSService_NotConnected(t *testing.T) {
	ns := NewNATSService(Config{})

	if ns.Connected() {
		t.Error("Expected Connected() to be false before Connect")
	}
	if err := ns.PublishTranscription(nil); err == nil {
		t.Error("Expected publish on unconnected service to fail")
	}
}
