package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/internal/catalog"
	"github.com/ptfoundation/pandham-backend/internal/contributions"
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

const maxReferenceAttempts = 3

// errPoolDrained aborts a matching transaction when a concurrent consumer
// emptied the give pool between the pool check and the reservation.
var errPoolDrained = errors.New("give pool drained during match")

// SubmitInput captures an end-user request for free books.
type SubmitInput struct {
	BookID          uuid.UUID
	Quantity        int
	TargetGroupID   *uuid.UUID
	RecipientName   string
	PhoneNumber     string
	ShippingAddress *string
	AcceptTerms     bool
}

// ListInput narrows and paginates admin request listings.
type ListInput struct {
	BookID      *uuid.UUID
	OnlyWaiting bool
	Pagination  pagination.Params
}

// Service accepts requests and links them to open pledges, or queues them
// until new pledges arrive.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Request, error)
	Reevaluate(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	ReevaluateWaitingForBook(ctx context.Context, bookID uuid.UUID) (int, error)
	GetByReference(ctx context.Context, reference string) (*models.Request, error)
	List(ctx context.Context, input ListInput) ([]models.Request, string, error)
}

type service struct {
	repo     Repository
	contribs contributions.Repository
	client   *dbpkg.Client
	books    catalog.Service
	stock    inventory.Service
	gen      *refnum.Generator
	events   *outbox.Service
	logg     *logger.Logger
}

// NewService wires the request matcher. The outbox service and logger are
// optional.
func NewService(
	repo Repository,
	contribs contributions.Repository,
	client *dbpkg.Client,
	books catalog.Service,
	stock inventory.Service,
	gen *refnum.Generator,
	events *outbox.Service,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if contribs == nil {
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
		repo:     repo,
		contribs: contribs,
		client:   client,
		books:    books,
		stock:    stock,
		gen:      gen,
		events:   events,
		logg:     logg,
	}, nil
}

// Submit persists the request and either links it to the oldest open pledge
// with enough spare capacity or queues it as waiting, in one transaction.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Request, error) {
	if err := validateSubmit(input); err != nil {
		return nil, err
	}

	book, err := s.books.GetBook(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	if input.TargetGroupID != nil {
		groups, err := s.contribs.GetTargetGroupsByIDs(ctx, []uuid.UUID{*input.TargetGroupID})
		if err != nil {
			return nil, err
		}
		if len(groups) != 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "target group does not exist")
		}
	}

	open, err := s.repo.HasOpenByPhoneAndBook(ctx, input.PhoneNumber, book.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an open request for this book already exists for this phone number")
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reference := s.gen.Next(refnum.PrefixRequest)
		if attempt > 0 {
			reference, err = s.gen.NextWithSuffix(refnum.PrefixRequest)
			if err != nil {
				return nil, err
			}
		}

		req, txErr := s.submitOnce(ctx, reference, input, true)
		if txErr == nil {
			s.logSubmitted(ctx, req)
			return req, nil
		}
		if errors.Is(txErr, errPoolDrained) {
			// The pool emptied under us; park the request instead.
			req, txErr = s.submitOnce(ctx, reference, input, false)
			if txErr == nil {
				s.logSubmitted(ctx, req)
				return req, nil
			}
		}
		if dbpkg.IsUniqueViolation(txErr, "ux_requests_reference") && attempt < maxReferenceAttempts-1 {
			continue
		}
		return nil, txErr
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique reference number")
}

func (s *service) submitOnce(ctx context.Context, reference string, input SubmitInput, allowMatch bool) (*models.Request, error) {
	req := &models.Request{
		ID:              uuid.New(),
		ReferenceNumber: reference,
		BookID:          input.BookID,
		Quantity:        input.Quantity,
		TargetGroupID:   input.TargetGroupID,
		RecipientName:   strings.TrimSpace(input.RecipientName),
		PhoneNumber:     input.PhoneNumber,
		ShippingAddress: input.ShippingAddress,
		AcceptTerms:     input.AcceptTerms,
		IsWaiting:       true,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var match *models.Contribution
		if allowMatch {
			found, err := s.findMatch(ctx, tx, req)
			if err != nil {
				return err
			}
			match = found
		}
		if match != nil {
			req.IsWaiting = false
			req.ContributionID = &match.ID
		}

		if err := s.repo.WithTx(tx).Create(ctx, req); err != nil {
			return err
		}
		if match != nil {
			return s.reserve(ctx, tx, req, match)
		}
		return s.emitWaiting(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// findMatch runs the read-only half of the matching algorithm. A nil result
// means the request waits: the pool cannot cover it, it carries no target
// group, or no open pledge fits.
func (s *service) findMatch(ctx context.Context, tx *gorm.DB, req *models.Request) (*models.Contribution, error) {
	txRepo := s.repo.WithTx(tx)

	pool, err := txRepo.GivePool(ctx, req.BookID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	if pool.CurrentStock < req.Quantity {
		return nil, nil
	}

	// A request without a target group cannot be matched against targeted
	// pledges and always waits.
	if req.TargetGroupID == nil {
		return nil, nil
	}

	match, err := s.contribs.WithTx(tx).FindOpenForMatch(ctx, req.BookID, *req.TargetGroupID, req.Quantity)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return match, nil
}

// reserve applies the side effects of a match: pledge capacity, give-pool
// stock, and the matched event. All guards failing hard abort the transaction.
func (s *service) reserve(ctx context.Context, tx *gorm.DB, req *models.Request, match *models.Contribution) error {
	reserved, err := s.contribs.WithTx(tx).IncrementFulfilled(ctx, match.ID, req.Quantity)
	if err != nil {
		return err
	}
	if !reserved {
		return errPoolDrained
	}

	_, err = s.stock.RecordTx(ctx, tx, inventory.RecordTransactionInput{
		BookID:   req.BookID,
		Type:     enums.StockTransactionTypeRequestFulfilled,
		Quantity: req.Quantity,
		Details:  "request " + req.ReferenceNumber + " matched to contribution " + match.ReferenceNumber,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			return errPoolDrained
		}
		return err
	}

	return s.emitMatched(ctx, tx, req, match)
}

// Reevaluate re-runs matching for a waiting request. Matched requests are
// returned unchanged.
func (s *service) Reevaluate(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, err
	}
	if !req.IsWaiting {
		return req, nil
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		match, err := s.findMatch(ctx, tx, req)
		if err != nil || match == nil {
			return err
		}
		linked, err := s.repo.WithTx(tx).MarkMatched(ctx, req.ID, match.ID)
		if err != nil {
			return err
		}
		if !linked {
			return nil
		}
		if err := s.reserve(ctx, tx, req, match); err != nil {
			return err
		}
		req.IsWaiting = false
		req.ContributionID = &match.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, errPoolDrained) {
			return req, nil
		}
		return nil, err
	}
	return req, nil
}

// ReevaluateWaitingForBook serves waiting requests oldest first and reports
// how many were matched. Scanning stops once the give pool is empty.
func (s *service) ReevaluateWaitingForBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	if bookID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	waiting, err := s.repo.ListWaitingByBook(ctx, bookID)
	if err != nil {
		return 0, err
	}

	matched := 0
	for i := range waiting {
		pool, err := s.repo.GivePool(ctx, bookID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				break
			}
			return matched, err
		}
		if pool.CurrentStock <= 0 {
			break
		}

		req, err := s.Reevaluate(ctx, waiting[i].ID)
		if err != nil {
			return matched, err
		}
		if !req.IsWaiting {
			matched++
		}
	}

	if s.logg != nil && matched > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"book_id": bookID.String(),
			"matched": matched,
		})
		s.logg.Info(logCtx, "waiting requests matched")
	}
	return matched, nil
}

func (s *service) GetByReference(ctx context.Context, reference string) (*models.Request, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference number is required")
	}
	req, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, err
	}
	return req, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.Request, string, error) {
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, ListFilter{
		BookID:      input.BookID,
		OnlyWaiting: input.OnlyWaiting,
		Limit:       limit + 1,
		Cursor:      cursor,
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

func (s *service) emitMatched(ctx context.Context, tx *gorm.DB, req *models.Request, match *models.Contribution) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequestMatched,
		AggregateType: enums.AggregateRequest,
		AggregateID:   req.ID,
		Version:       1,
		Data: payloads.RequestMatchedEvent{
			RequestID:       req.ID,
			ReferenceNumber: req.ReferenceNumber,
			ContributionID:  match.ID,
			BookID:          req.BookID,
			Quantity:        req.Quantity,
			MatchedAt:       time.Now().UTC(),
		},
	})
}

func (s *service) emitWaiting(ctx context.Context, tx *gorm.DB, req *models.Request) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequestWaiting,
		AggregateType: enums.AggregateRequest,
		AggregateID:   req.ID,
		Version:       1,
		Data: payloads.RequestWaitingEvent{
			RequestID:       req.ID,
			ReferenceNumber: req.ReferenceNumber,
			BookID:          req.BookID,
			TargetGroupID:   req.TargetGroupID,
			CreatedAt:       time.Now().UTC(),
		},
	})
}

func (s *service) logSubmitted(ctx context.Context, req *models.Request) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reference": req.ReferenceNumber,
		"book_id":   req.BookID.String(),
		"quantity":  req.Quantity,
		"waiting":   req.IsWaiting,
	})
	s.logg.Info(logCtx, "request submitted")
}

func validateSubmit(input SubmitInput) error {
	if input.BookID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	if input.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if strings.TrimSpace(input.RecipientName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient name is required")
	}
	if strings.TrimSpace(input.PhoneNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}
	if !input.AcceptTerms {
		return pkgerrors.New(pkgerrors.CodeValidation, "terms must be accepted")
	}
	if input.TargetGroupID != nil && *input.TargetGroupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "target group id cannot be empty")
	}
	return nil
}
