package rescan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ptfoundation/pandham-backend/pkg/enums"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	"github.com/ptfoundation/pandham-backend/pkg/metrics"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/outbox/payloads"
)

const rescanJob = "waiting-request-rescan"

type matcher interface {
	ReevaluateWaitingForBook(ctx context.Context, bookID uuid.UUID) (int, error)
}

// Consumer watches domain events and re-checks waiting requests whenever a
// new pledge lands for a book.
type Consumer struct {
	matcher      matcher
	subscription *pubsub.Subscriber
	jobs         *metrics.JobMetrics
	logg         *logger.Logger
}

// NewConsumer builds a rescan consumer. Metrics are optional.
func NewConsumer(m matcher, subscription *pubsub.Subscriber, jobs *metrics.JobMetrics, logg *logger.Logger) (*Consumer, error) {
	if m == nil {
		return nil, fmt.Errorf("request matcher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		matcher:      m,
		subscription: subscription,
		jobs:         jobs,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// process handles one delivery. Reevaluation is idempotent per book, so
// duplicate deliveries are simply acked after a second no-op pass.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventContributionCreated) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	var payload payloads.ContributionCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	if payload.BookID == uuid.Nil {
		c.logg.Warn(c.logg.WithField(logCtx, "event_id", envelope.EventID), "contribution event missing book id")
		return processResult{ack: true}
	}
	if payload.BooksGiven <= 0 {
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"book_id":      payload.BookID.String(),
		"contribution": payload.ReferenceNumber,
	})

	start := time.Now()
	matched, err := c.matcher.ReevaluateWaitingForBook(ctx, payload.BookID)
	c.jobs.ObserveDuration(rescanJob, time.Since(start))
	if err != nil {
		c.jobs.IncFailure(rescanJob)
		c.logg.Error(logCtx, "rescan failed", err)
		return processResult{nack: true}
	}

	c.jobs.IncSuccess(rescanJob)
	if matched > 0 {
		c.logg.Info(c.logg.WithField(logCtx, "matched", matched), "waiting requests matched after rescan")
	}
	return processResult{ack: true}
}
