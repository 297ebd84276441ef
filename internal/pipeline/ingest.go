package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"watchtower/internal/classify"
	inputredis "watchtower/internal/input/redis"
	"watchtower/internal/logger"
	"watchtower/internal/monitor"
	"watchtower/pkg/models"
)

// Envelope is the wire shape instrumentation pushes onto the Redis list.
type Envelope struct {
	EventType      string                 `json:"event_type"`
	CorrelationKey string                 `json:"correlation_key"`
	Timestamp      time.Time              `json:"timestamp,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Severity       string                 `json:"severity,omitempty"`
}

// Ingest consumes envelopes from Redis and feeds them to the monitor.
type Ingest struct {
	consumer     *inputredis.Consumer
	monitor      *monitor.Monitor
	classifier   *classify.Classifier
	redactFields []string
	workers      int
}

// NewIngest creates the ingestion pipeline. classifier may be nil;
// redactFields mask metadata in log output only.
func NewIngest(consumer *inputredis.Consumer, mon *monitor.Monitor, classifier *classify.Classifier, redactFields []string, workers int) *Ingest {
	if workers <= 0 {
		workers = 4
	}
	return &Ingest{
		consumer:     consumer,
		monitor:      mon,
		classifier:   classifier,
		redactFields: redactFields,
		workers:      workers,
	}
}

// Run starts the read loop and worker pool and blocks until ctx is done
// and in-flight envelopes have drained.
func (p *Ingest) Run(ctx context.Context) error {
	logger.Infof("Ingest pipeline started with %d workers", p.workers)

	msgCh := make(chan []byte, p.workers*4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for payload := range msgCh {
				p.handle(ctx, payload)
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}

// Close releases the consumer.
func (p *Ingest) Close() error {
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *Ingest) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop redis message: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Ingest) handle(ctx context.Context, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Warnf("Dropping undecodable envelope: %v", err)
		return
	}

	event, ok := p.buildEvent(&env)
	if !ok {
		return
	}

	dispatched, err := p.monitor.RecordEvent(ctx, event)
	if err != nil {
		logger.Warnf("Rejected event for key %s: %v", env.CorrelationKey, err)
		return
	}
	logger.Debugf("Recorded %s event for %s, metadata=%v",
		event.Type, event.CorrelationKey, models.RedactMetadata(event.Metadata, p.redactFields))
	for _, alert := range dispatched {
		logger.Infof("Dispatched alert %s pattern=%s key=%s severity=%s events=%d",
			alert.AlertID, alert.PatternName, alert.CorrelationKey, alert.Severity, len(alert.TriggeringEvents))
	}
}

func (p *Ingest) buildEvent(env *Envelope) (*models.SecurityEvent, bool) {
	eventType := models.EventType(env.EventType)
	severityHint := models.SeverityUnknown
	if env.Severity != "" {
		if sev, err := models.ParseSeverity(env.Severity); err == nil {
			severityHint = sev
		}
	}
	metadata := env.Metadata

	if !eventType.Valid() {
		verdict, matched := p.classifier.Classify(env.Metadata)
		if !matched {
			logger.Warnf("Dropping envelope with unknown event type %q for key %s", env.EventType, env.CorrelationKey)
			return nil, false
		}
		eventType = models.EventSuspiciousBehavior
		severityHint = verdict.SeverityHint
		metadata = make(map[string]interface{}, len(env.Metadata)+2)
		for k, v := range env.Metadata {
			metadata[k] = v
		}
		metadata["rule_id"] = verdict.RuleID
		metadata["rule_title"] = verdict.RuleTitle
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &models.SecurityEvent{
		Type:           eventType,
		Timestamp:      ts,
		CorrelationKey: env.CorrelationKey,
		Metadata:       metadata,
		SeverityHint:   severityHint,
	}, true
}
