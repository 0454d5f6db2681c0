package nats

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
	"github.com/hilvik/vivum-demo-v1/pkg/metrics"
)

// SubjectPrefix is the root of every event subject.
const SubjectPrefix = "chat"

// Subject returns the subject events of type t in session are published on.
func Subject(sessionID string, t model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, sessionID, t)
}

// PublishFunc sends data on subject.
type PublishFunc func(subject string, data []byte) error

// Publisher relays engine events to NATS until the engine closes.
type Publisher struct {
	publish PublishFunc
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// NewPublisher creates a publisher on client's connection.
func NewPublisher(client *Client, log *logger.Logger) *Publisher {
	return NewPublisherFunc(client.Conn().Publish, log)
}

// NewPublisherFunc creates a publisher that sends through publish.
func NewPublisherFunc(publish PublishFunc, log *logger.Logger) *Publisher {
	return &Publisher{
		publish: publish,
		logger:  log,
	}
}

// Attach subscribes to e and publishes its events under sessionID until e
// closes. If the subscription is dropped for falling behind, Attach
// resubscribes; events sent while it was behind are not published.
func (p *Publisher) Attach(sessionID string, e *engine.Engine) {
	events, _ := e.Subscribe()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			for ev := range events {
				p.Publish(sessionID, ev)
			}
			if e.Closed() {
				return
			}
			p.logger.Warn("event subscription dropped; resubscribing",
				zap.String("session_id", sessionID),
			)
			events, _ = e.Subscribe()
		}
	}()
}

// Publish sends a single event.
func (p *Publisher) Publish(sessionID string, ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.Error(err))
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type), "error").Inc()
		return
	}

	if err := p.publish(Subject(sessionID, ev.Type), data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("session_id", sessionID),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type), "error").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type), "success").Inc()
}

// Wait blocks until every attached engine has closed.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
