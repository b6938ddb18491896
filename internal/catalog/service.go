package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
)

// CreateBookInput captures a new title entering the catalog.
type CreateBookInput struct {
	Name              string
	ShortDescription  string
	Price             decimal.Decimal
	InitialStock      int
	MinimumStockLevel int
	SequenceOrder     int
	IsAvailable       bool
}

// UpdateBookInput carries partial updates for an existing title.
type UpdateBookInput struct {
	Name              *string
	ShortDescription  *string
	Price             *decimal.Decimal
	MinimumStockLevel *int
	SequenceOrder     *int
	IsAvailable       *bool
}

// Service exposes the public catalog plus the admin book operations.
type Service interface {
	ListBooks(ctx context.Context, onlyAvailable bool) ([]models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	CreateBook(ctx context.Context, input CreateBookInput) (*models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListTargetGroups(ctx context.Context) ([]models.TargetGroup, error)
}

type service struct {
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListBooks(ctx context.Context, onlyAvailable bool) ([]models.Book, error) {
	return s.repo.ListBooks(ctx, onlyAvailable)
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id is required")
	}
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, err
	}
	return book, nil
}

func (s *service) CreateBook(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book name is required")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}
	if input.MinimumStockLevel < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum stock level cannot be negative")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	book := &models.Book{
		ID:                uuid.New(),
		Name:              name,
		ShortDescription:  strings.TrimSpace(input.ShortDescription),
		Price:             input.Price,
		InitialStock:      input.InitialStock,
		MinimumStockLevel: input.MinimumStockLevel,
		CurrentStock:      input.InitialStock,
		SequenceOrder:     input.SequenceOrder,
		IsAvailable:       input.IsAvailable,
	}
	if err := s.repo.CreateBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "book name cannot be empty")
		}
		book.Name = name
	}
	if input.ShortDescription != nil {
		book.ShortDescription = strings.TrimSpace(*input.ShortDescription)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		book.Price = *input.Price
	}
	if input.MinimumStockLevel != nil {
		if *input.MinimumStockLevel < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum stock level cannot be negative")
		}
		book.MinimumStockLevel = *input.MinimumStockLevel
	}
	if input.SequenceOrder != nil {
		book.SequenceOrder = *input.SequenceOrder
	}
	if input.IsAvailable != nil {
		book.IsAvailable = *input.IsAvailable
	}

	// Save would write the association row back; detach it first.
	book.PandhamStock = nil
	if err := s.repo.UpdateBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook removes a title that has no ledger history. A book with recorded
// stock transactions stays, as the ledger must remain reconstructable.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountTransactions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "book has stock transactions and cannot be deleted").
			WithDetails(map[string]any{"transactions": count})
	}
	return s.repo.DeleteBook(ctx, id)
}

func (s *service) ListTargetGroups(ctx context.Context) ([]models.TargetGroup, error) {
	return s.repo.ListTargetGroups(ctx)
}
