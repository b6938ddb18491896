package rescan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptfoundation/pandham-backend/pkg/enums"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/outbox/payloads"
)

type stubMatcher struct {
	calls   []uuid.UUID
	matched int
	err     error
}

func (s *stubMatcher) ReevaluateWaitingForBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	s.calls = append(s.calls, bookID)
	return s.matched, s.err
}

func testConsumer(m *stubMatcher) *Consumer {
	return &Consumer{
		matcher: m,
		logg:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func buildMessage(t *testing.T, eventType string, payload payloads.ContributionCreatedEvent) *pubsub.Message {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)

	return &pubsub.Message{
		Attributes: map[string]string{"event_type": eventType},
		Data:       envelope,
	}
}

func TestProcessRescansBookOnContributionCreated(t *testing.T) {
	t.Parallel()

	m := &stubMatcher{matched: 2}
	c := testConsumer(m)
	bookID := uuid.New()

	msg := buildMessage(t, string(enums.EventContributionCreated), payloads.ContributionCreatedEvent{
		ContributionID:  uuid.New(),
		ReferenceNumber: "PROP20260314092653",
		BookID:          bookID,
		BooksGiven:      3,
	})

	result := c.process(context.Background(), msg)
	assert.True(t, result.ack)
	require.Len(t, m.calls, 1)
	assert.Equal(t, bookID, m.calls[0])
}

func TestProcessSkipsOtherEventTypes(t *testing.T) {
	t.Parallel()

	m := &stubMatcher{}
	c := testConsumer(m)

	msg := buildMessage(t, string(enums.EventStockLow), payloads.ContributionCreatedEvent{})

	result := c.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Empty(t, m.calls)
}

func TestProcessSkipsKeepOnlyPledges(t *testing.T) {
	t.Parallel()

	m := &stubMatcher{}
	c := testConsumer(m)

	msg := buildMessage(t, string(enums.EventContributionCreated), payloads.ContributionCreatedEvent{
		ContributionID: uuid.New(),
		BookID:         uuid.New(),
		BooksGiven:     0,
	})

	result := c.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Empty(t, m.calls)
}

func TestProcessAcksMalformedPayload(t *testing.T) {
	t.Parallel()

	m := &stubMatcher{}
	c := testConsumer(m)

	msg := &pubsub.Message{
		Attributes: map[string]string{"event_type": string(enums.EventContributionCreated)},
		Data:       []byte("not json"),
	}

	result := c.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Empty(t, m.calls)
}

func TestProcessNacksOnMatcherError(t *testing.T) {
	t.Parallel()

	m := &stubMatcher{err: errors.New("db down")}
	c := testConsumer(m)

	msg := buildMessage(t, string(enums.EventContributionCreated), payloads.ContributionCreatedEvent{
		ContributionID: uuid.New(),
		BookID:         uuid.New(),
		BooksGiven:     1,
	})

	result := c.process(context.Background(), msg)
	assert.True(t, result.nack)
}
