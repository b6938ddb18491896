package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/ptfoundation/pandham-backend/pkg/db"
	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/enums"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/outbox/payloads"
	"github.com/ptfoundation/pandham-backend/pkg/pagination"
)

// RecordTransactionInput captures a ledger entry before it is applied.
type RecordTransactionInput struct {
	BookID   uuid.UUID
	Type     enums.StockTransactionType
	Quantity int
	Details  string
}

// StockLevels is a point-in-time view of both pools for one book.
type StockLevels struct {
	BookID            uuid.UUID `json:"book_id"`
	BookName          string    `json:"book_name"`
	MainStock         int       `json:"main_stock"`
	GiveStock         int       `json:"give_stock"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
	IsAvailable       bool      `json:"is_available"`
}

// ListTransactionsInput narrows and paginates ledger listings.
type ListTransactionsInput struct {
	BookID     *uuid.UUID
	Type       *enums.StockTransactionType
	Pagination pagination.Params
}

// Service applies ledger entries to the stock pools atomically.
type Service interface {
	Record(ctx context.Context, input RecordTransactionInput) (*models.StockTransaction, error)
	RecordTx(ctx context.Context, tx *gorm.DB, input RecordTransactionInput) (*models.StockTransaction, error)
	StockLevels(ctx context.Context, bookID uuid.UUID) (*StockLevels, error)
	ListTransactions(ctx context.Context, input ListTransactionsInput) ([]models.StockTransaction, string, error)
}

type service struct {
	repo   Repository
	client *dbpkg.Client
	events *outbox.Service
	logg   *logger.Logger
}

// NewService wires the inventory service. The outbox service and logger are
// optional.
func NewService(repo Repository, client *dbpkg.Client, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, client: client, events: events, logg: logg}, nil
}

// Record applies a ledger entry inside its own transaction.
func (s *service) Record(ctx context.Context, input RecordTransactionInput) (*models.StockTransaction, error) {
	var row *models.StockTransaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.RecordTx(ctx, tx, input)
		if err != nil {
			return err
		}
		row = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// RecordTx applies a ledger entry inside the caller's transaction. The stock
// counters move together with the appended ledger row or not at all.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, input RecordTransactionInput) (*models.StockTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.BookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}

	mainDelta, giveDelta, err := deltasFor(input.Type, input.Quantity)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	if _, err := repo.GetBook(ctx, input.BookID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, err
	}

	if mainDelta != 0 {
		applied, err := repo.ApplyMainDelta(ctx, input.BookID, mainDelta)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "main stock would go negative").
				WithDetails(map[string]any{"book_id": input.BookID, "delta": mainDelta})
		}
	}

	if giveDelta != 0 {
		if giveDelta > 0 {
			if err := repo.EnsurePandhamStock(ctx, input.BookID); err != nil {
				return nil, err
			}
		}
		applied, err := repo.ApplyGiveDelta(ctx, input.BookID, giveDelta)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "give pool would go negative").
				WithDetails(map[string]any{"book_id": input.BookID, "delta": giveDelta})
		}
	}

	row := &models.StockTransaction{
		ID:       uuid.New(),
		BookID:   input.BookID,
		Type:     input.Type,
		Quantity: input.Quantity,
		Details:  input.Details,
	}
	if err := repo.InsertTransaction(ctx, row); err != nil {
		return nil, err
	}

	if mainDelta < 0 {
		if err := s.maybeEmitStockLow(ctx, tx, repo, input.BookID); err != nil {
			return nil, err
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"book_id":  input.BookID.String(),
			"type":     input.Type,
			"quantity": input.Quantity,
		})
		s.logg.Info(logCtx, "stock transaction recorded")
	}
	return row, nil
}

func (s *service) maybeEmitStockLow(ctx context.Context, tx *gorm.DB, repo Repository, bookID uuid.UUID) error {
	if s.events == nil {
		return nil
	}
	book, err := repo.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if book.CurrentStock > book.MinimumStockLevel {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateBook,
		AggregateID:   book.ID,
		Version:       1,
		Data: payloads.StockLowEvent{
			BookID:       book.ID,
			CurrentStock: book.CurrentStock,
			MinimumLevel: book.MinimumStockLevel,
			OccurredAt:   time.Now().UTC(),
		},
	})
}

func (s *service) StockLevels(ctx context.Context, bookID uuid.UUID) (*StockLevels, error) {
	if bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, err
	}
	levels := &StockLevels{
		BookID:            book.ID,
		BookName:          book.Name,
		MainStock:         book.CurrentStock,
		MinimumStockLevel: book.MinimumStockLevel,
		IsAvailable:       book.IsAvailable,
	}
	pool, err := s.repo.GetPandhamStock(ctx, bookID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		return levels, nil
	}
	levels.GiveStock = pool.CurrentStock
	return levels, nil
}

func (s *service) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]models.StockTransaction, string, error) {
	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListTransactions(ctx, TransactionFilter{
		BookID: input.BookID,
		Type:   input.Type,
		Limit:  limit + 1,
		Cursor: cursor,
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

// deltasFor maps a transaction type to its effect on the two stock pools.
func deltasFor(txType enums.StockTransactionType, quantity int) (mainDelta, giveDelta int, err error) {
	if txType == enums.StockTransactionTypeAdjustment {
		if quantity == 0 {
			return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "adjustment quantity must be non-zero")
		}
		return quantity, 0, nil
	}
	if quantity <= 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	switch txType {
	case enums.StockTransactionTypeReceive:
		return quantity, 0, nil
	case enums.StockTransactionTypeSupportPrint, enums.StockTransactionTypeDonate:
		return -quantity, 0, nil
	case enums.StockTransactionTypeGivePledge:
		return -quantity, quantity, nil
	case enums.StockTransactionTypeRequestFulfilled:
		return 0, -quantity, nil
	default:
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", txType))
	}
}
