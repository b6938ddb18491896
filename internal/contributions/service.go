package contributions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/internal/catalog"
	"github.com/ptfoundation/pandham-backend/internal/inventory"
	"github.com/ptfoundation/pandham-backend/internal/refnum"
	dbpkg "github.com/ptfoundation/pandham-backend/pkg/db"
	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/enums"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/outbox/payloads"
	"github.com/ptfoundation/pandham-backend/pkg/pagination"
)

// maxReferenceAttempts bounds the retry loop when the generated reference
// number collides with an existing one.
const maxReferenceAttempts = 3

// CreateInput captures a new pledge from the public intake form.
type CreateInput struct {
	BookID            uuid.UUID
	AmountContributed decimal.Decimal
	TotalBooks        int
	BooksGiven        int
	TargetGroupIDs    []uuid.UUID
	DonorName         string
	PhoneNumber       string
	ShippingAddress   *string
	Note              *string
}

// CreateResult carries the persisted pledge plus any stock postings that were
// skipped. A pledge is a promise, so bookkeeping that cannot be applied is
// reported instead of failing the intake.
type CreateResult struct {
	Contribution  *models.Contribution
	StockWarnings error
}

// ListInput narrows and paginates admin contribution listings.
type ListInput struct {
	BookID     *uuid.UUID
	OnlyOpen   bool
	Pagination pagination.Params
}

// Service records pledges and exposes their lifecycle to the admin surface.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	GetByReference(ctx context.Context, reference string) (*models.Contribution, error)
	List(ctx context.Context, input ListInput) ([]models.Contribution, string, error)
	MarkCompleted(ctx context.Context, reference string) (*models.Contribution, error)
	NotifyPayment(ctx context.Context, reference string, note *string) (*models.Contribution, error)
}

type service struct {
	repo   Repository
	client *dbpkg.Client
	books  catalog.Service
	stock  inventory.Service
	gen    *refnum.Generator
	events *outbox.Service
	logg   *logger.Logger
}

// NewService wires the contribution intake. The outbox service and logger are
// optional.
func NewService(
	repo Repository,
	client *dbpkg.Client,
	books catalog.Service,
	stock inventory.Service,
	gen *refnum.Generator,
	events *outbox.Service,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contributions repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if gen == nil {
		gen = refnum.NewGenerator()
	}
	return &service{
		repo:   repo,
		client: client,
		books:  books,
		stock:  stock,
		gen:    gen,
		events: events,
		logg:   logg,
	}, nil
}

// Create persists the pledge, its target-group links, the stock postings and
// the created event in one transaction. A posting rejected for insufficient
// stock is skipped and surfaced in the result; the pledge itself still commits.
func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	book, err := s.books.GetBook(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	groups, err := s.resolveTargetGroups(ctx, input.TargetGroupIDs)
	if err != nil {
		return nil, err
	}

	donorName := strings.TrimSpace(input.DonorName)
	if donorName == "" {
		donorName = "anonymous"
	}
	booksKept := input.TotalBooks - input.BooksGiven

	var result *CreateResult
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reference := s.gen.Next(refnum.PrefixContribution)
		if attempt > 0 {
			reference, err = s.gen.NextWithSuffix(refnum.PrefixContribution)
			if err != nil {
				return nil, err
			}
		}

		var warnings error
		contribution := &models.Contribution{
			ID:                uuid.New(),
			ReferenceNumber:   reference,
			BookID:            book.ID,
			AmountContributed: input.AmountContributed,
			TotalBooks:        input.TotalBooks,
			BooksKept:         booksKept,
			BooksGiven:        input.BooksGiven,
			DonorName:         donorName,
			PhoneNumber:       input.PhoneNumber,
			ShippingAddress:   input.ShippingAddress,
			Note:              input.Note,
		}

		txErr := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			if err := txRepo.Create(ctx, contribution); err != nil {
				return err
			}
			if err := txRepo.AttachTargetGroups(ctx, contribution, groups); err != nil {
				return err
			}

			if booksKept > 0 {
				warnings = multierr.Append(warnings, s.postAdvisory(ctx, tx, inventory.RecordTransactionInput{
					BookID:   book.ID,
					Type:     enums.StockTransactionTypeSupportPrint,
					Quantity: booksKept,
					Details:  "contribution " + reference + ": books kept by donor",
				}))
			}
			if input.BooksGiven > 0 {
				warnings = multierr.Append(warnings, s.postAdvisory(ctx, tx, inventory.RecordTransactionInput{
					BookID:   book.ID,
					Type:     enums.StockTransactionTypeGivePledge,
					Quantity: input.BooksGiven,
					Details:  "contribution " + reference + ": books pledged to give pool",
				}))
			}

			return s.emitCreated(ctx, tx, contribution, groups)
		})
		if txErr != nil {
			if dbpkg.IsUniqueViolation(txErr, "ux_contributions_reference") && attempt < maxReferenceAttempts-1 {
				continue
			}
			return nil, txErr
		}

		contribution.TargetGroups = groups
		result = &CreateResult{Contribution: contribution, StockWarnings: warnings}
		break
	}
	if result == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique reference number")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"reference":   result.Contribution.ReferenceNumber,
			"book_id":     book.ID.String(),
			"total_books": input.TotalBooks,
			"books_given": input.BooksGiven,
		})
		s.logg.Info(logCtx, "contribution recorded")
		for _, warn := range multierr.Errors(result.StockWarnings) {
			s.logg.Warn(logCtx, "stock posting skipped: "+warn.Error())
		}
	}
	return result, nil
}

// postAdvisory applies a stock posting, converting an insufficient-stock
// rejection into a warning so the enclosing transaction keeps going.
func (s *service) postAdvisory(ctx context.Context, tx *gorm.DB, input inventory.RecordTransactionInput) error {
	_, err := s.stock.RecordTx(ctx, tx, input)
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		return fmt.Errorf("%s posting for %d book(s) skipped: %w", input.Type, input.Quantity, err)
	}
	return err
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, c *models.Contribution, groups []models.TargetGroup) error {
	if s.events == nil {
		return nil
	}
	groupIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID.String())
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventContributionCreated,
		AggregateType: enums.AggregateContribution,
		AggregateID:   c.ID,
		Version:       1,
		Data: payloads.ContributionCreatedEvent{
			ContributionID:  c.ID,
			ReferenceNumber: c.ReferenceNumber,
			BookID:          c.BookID,
			BooksGiven:      c.BooksGiven,
			TargetGroupIDs:  groupIDs,
			CreatedAt:       time.Now().UTC(),
		},
	})
}

func (s *service) resolveTargetGroups(ctx context.Context, ids []uuid.UUID) ([]models.TargetGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "target group id cannot be empty")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	groups, err := s.repo.GetTargetGroupsByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(groups) != len(unique) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "one or more target groups do not exist")
	}
	return groups, nil
}

func validateCreate(input CreateInput) error {
	if input.BookID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	if strings.TrimSpace(input.PhoneNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}
	if input.AmountContributed.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount contributed cannot be negative")
	}
	if input.TotalBooks < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total books cannot be negative")
	}
	if input.BooksGiven < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "books given cannot be negative")
	}
	if input.BooksGiven > input.TotalBooks {
		return pkgerrors.New(pkgerrors.CodeValidation, "books given cannot exceed total books")
	}
	if input.TotalBooks == 0 && input.AmountContributed.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "a pledge needs books or a monetary amount")
	}
	return nil
}

func (s *service) GetByReference(ctx context.Context, reference string) (*models.Contribution, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference number is required")
	}
	c, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contribution not found")
		}
		return nil, err
	}
	return c, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.Contribution, string, error) {
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, ListFilter{
		BookID:   input.BookID,
		OnlyOpen: input.OnlyOpen,
		Limit:    limit + 1,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) MarkCompleted(ctx context.Context, reference string) (*models.Contribution, error) {
	c, err := s.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.MarkCompleted(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "contribution is already completed")
	}
	c.IsCompleted = true
	return c, nil
}

// NotifyPayment records that the donor reported a transfer, optionally
// replacing the note with the payment proof text. Repeat notifications are
// accepted without error.
func (s *service) NotifyPayment(ctx context.Context, reference string, note *string) (*models.Contribution, error) {
	c, err := s.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.MarkPaymentNotified(ctx, c.ID); err != nil {
		return nil, err
	}
	c.PaymentNotified = true
	if note != nil {
		trimmed := strings.TrimSpace(*note)
		if trimmed != "" {
			if err := s.repo.UpdateNote(ctx, c.ID, trimmed); err != nil {
				return nil, err
			}
			c.Note = &trimmed
		}
	}
	return c, nil
}
