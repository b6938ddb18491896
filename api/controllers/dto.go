package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
)

type bookResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	ShortDescription  string          `json:"short_description"`
	Price             decimal.Decimal `json:"price"`
	CurrentStock      int             `json:"current_stock"`
	GiveStock         int             `json:"give_stock"`
	MinimumStockLevel int             `json:"minimum_stock_level"`
	SequenceOrder     int             `json:"sequence_order"`
	IsAvailable       bool            `json:"is_available"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toBookResponse(book models.Book) bookResponse {
	resp := bookResponse{
		ID:                book.ID,
		Name:              book.Name,
		ShortDescription:  book.ShortDescription,
		Price:             book.Price,
		CurrentStock:      book.CurrentStock,
		MinimumStockLevel: book.MinimumStockLevel,
		SequenceOrder:     book.SequenceOrder,
		IsAvailable:       book.IsAvailable,
		CreatedAt:         book.CreatedAt,
		UpdatedAt:         book.UpdatedAt,
	}
	if book.PandhamStock != nil {
		resp.GiveStock = book.PandhamStock.CurrentStock
	}
	return resp
}

func toBookResponses(books []models.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for _, book := range books {
		out = append(out, toBookResponse(book))
	}
	return out
}

type targetGroupResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
}

func toTargetGroupResponse(group models.TargetGroup) targetGroupResponse {
	return targetGroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Priority:    group.Priority,
	}
}

func toTargetGroupResponses(groups []models.TargetGroup) []targetGroupResponse {
	out := make([]targetGroupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, toTargetGroupResponse(group))
	}
	return out
}

type contributionResponse struct {
	ID                uuid.UUID             `json:"id"`
	ReferenceNumber   string                `json:"reference_number"`
	BookID            uuid.UUID             `json:"book_id"`
	AmountContributed decimal.Decimal       `json:"amount_contributed"`
	TotalBooks        int                   `json:"total_books"`
	BooksKept         int                   `json:"books_kept"`
	BooksGiven        int                   `json:"books_given"`
	FulfilledCount    int                   `json:"fulfilled_count"`
	TargetGroups      []targetGroupResponse `json:"target_groups"`
	DonorName         string                `json:"donor_name"`
	PhoneNumber       string                `json:"phone_number"`
	ShippingAddress   *string               `json:"shipping_address,omitempty"`
	Note              *string               `json:"note,omitempty"`
	PaymentNotified   bool                  `json:"payment_notified"`
	IsCompleted       bool                  `json:"is_completed"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func toContributionResponse(c models.Contribution) contributionResponse {
	return contributionResponse{
		ID:                c.ID,
		ReferenceNumber:   c.ReferenceNumber,
		BookID:            c.BookID,
		AmountContributed: c.AmountContributed,
		TotalBooks:        c.TotalBooks,
		BooksKept:         c.BooksKept,
		BooksGiven:        c.BooksGiven,
		FulfilledCount:    c.FulfilledCount,
		TargetGroups:      toTargetGroupResponses(c.TargetGroups),
		DonorName:         c.DonorName,
		PhoneNumber:       c.PhoneNumber,
		ShippingAddress:   c.ShippingAddress,
		Note:              c.Note,
		PaymentNotified:   c.PaymentNotified,
		IsCompleted:       c.IsCompleted,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func toContributionResponses(rows []models.Contribution) []contributionResponse {
	out := make([]contributionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toContributionResponse(row))
	}
	return out
}

type requestResponse struct {
	ID              uuid.UUID            `json:"id"`
	ReferenceNumber string               `json:"reference_number"`
	BookID          uuid.UUID            `json:"book_id"`
	Quantity        int                  `json:"quantity"`
	TargetGroup     *targetGroupResponse `json:"target_group,omitempty"`
	ContributionID  *uuid.UUID           `json:"contribution_id,omitempty"`
	RecipientName   string               `json:"recipient_name"`
	PhoneNumber     string               `json:"phone_number"`
	ShippingAddress *string              `json:"shipping_address,omitempty"`
	IsWaiting       bool                 `json:"is_waiting"`
	IsCompleted     bool                 `json:"is_completed"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func toRequestResponse(r models.Request) requestResponse {
	resp := requestResponse{
		ID:              r.ID,
		ReferenceNumber: r.ReferenceNumber,
		BookID:          r.BookID,
		Quantity:        r.Quantity,
		ContributionID:  r.ContributionID,
		RecipientName:   r.RecipientName,
		PhoneNumber:     r.PhoneNumber,
		ShippingAddress: r.ShippingAddress,
		IsWaiting:       r.IsWaiting,
		IsCompleted:     r.IsCompleted,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.TargetGroup != nil {
		group := toTargetGroupResponse(*r.TargetGroup)
		resp.TargetGroup = &group
	}
	return resp
}

func toRequestResponses(rows []models.Request) []requestResponse {
	out := make([]requestResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRequestResponse(row))
	}
	return out
}

type transactionResponse struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"book_id"`
	Type      string    `json:"type"`
	Quantity  int       `json:"quantity"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransactionResponse(t models.StockTransaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		BookID:    t.BookID,
		Type:      string(t.Type),
		Quantity:  t.Quantity,
		Details:   t.Details,
		CreatedAt: t.CreatedAt,
	}
}

func toTransactionResponses(rows []models.StockTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toTransactionResponse(row))
	}
	return out
}

type listEnvelope[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
