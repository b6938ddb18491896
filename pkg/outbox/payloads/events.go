package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ContributionCreatedEvent is emitted when a pledge is recorded. The rescan
// worker uses it to re-check waiting requests for the affected book.
type ContributionCreatedEvent struct {
	ContributionID  uuid.UUID `json:"contributionId"`
	ReferenceNumber string    `json:"referenceNumber"`
	BookID          uuid.UUID `json:"bookId"`
	BooksGiven      int       `json:"booksGiven"`
	TargetGroupIDs  []string  `json:"targetGroupIds,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RequestMatchedEvent is emitted when a request is assigned to a contribution.
type RequestMatchedEvent struct {
	RequestID       uuid.UUID `json:"requestId"`
	ReferenceNumber string    `json:"referenceNumber"`
	ContributionID  uuid.UUID `json:"contributionId"`
	BookID          uuid.UUID `json:"bookId"`
	Quantity        int       `json:"quantity"`
	MatchedAt       time.Time `json:"matchedAt"`
}

// RequestWaitingEvent is emitted when a request enters the waiting queue.
type RequestWaitingEvent struct {
	RequestID       uuid.UUID  `json:"requestId"`
	ReferenceNumber string     `json:"referenceNumber"`
	BookID          uuid.UUID  `json:"bookId"`
	TargetGroupID   *uuid.UUID `json:"targetGroupId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// StockLowEvent is emitted when a ledger entry drops a book's main stock to or
// below its minimum level.
type StockLowEvent struct {
	BookID       uuid.UUID `json:"bookId"`
	CurrentStock int       `json:"currentStock"`
	MinimumLevel int       `json:"minimumLevel"`
	OccurredAt   time.Time `json:"occurredAt"`
}
