package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Subjects published over the upload-events stream.
const (
	SubjectUploadPrepared  = "uploads.prepared"
	SubjectUploadStarted   = "uploads.started"
	SubjectUploadCompleted = "uploads.completed"
	SubjectUploadFailed    = "uploads.failed"
	SubjectUploadCancelled = "uploads.cancelled"
)

// EventPublisher publishes upload lifecycle events via JetStream. A nil
// publisher is valid and drops everything, so NATS can be switched off.
type EventPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// ConnectNATS connects, initializes JetStream and ensures the stream exists.
func ConnectNATS(url string) (*EventPublisher, error) {
	opts := []nats.Option{
		nats.Name("upload-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Println("[NATS] connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := &EventPublisher{nc: conn, js: js}
	if err := p.ensureStream(); err != nil {
		log.Printf("[NATS] warning: failed to ensure stream: %v", err)
	}

	log.Println("[NATS] connected and JetStream initialized")
	return p, nil
}

func (p *EventPublisher) ensureStream() error {
	if _, err := p.js.StreamInfo("upload-events"); err == nil {
		return nil
	}

	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     "upload-events",
		Subjects: []string{"uploads.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

// Publish sends a durable event. Failures are logged, never fatal: the
// pipeline must not stall because the event bus is down.
func (p *EventPublisher) Publish(subject string, payload interface{}) {
	if p == nil || p.js == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[NATS] marshal failed subject=%s err=%v", subject, err)
		return
	}

	// Message ID for idempotency on the consumer side.
	if _, err := p.js.Publish(subject, data, nats.MsgId(uuid.New().String())); err != nil {
		log.Printf("[NATS] publish failed subject=%s err=%v", subject, err)
	}
}

func (p *EventPublisher) Close() {
	if p != nil && p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
