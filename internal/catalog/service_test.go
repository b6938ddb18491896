package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/enums"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	books := `
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  short_description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL DEFAULT 0,
  initial_stock INTEGER NOT NULL DEFAULT 0,
  minimum_stock_level INTEGER NOT NULL DEFAULT 0,
  current_stock INTEGER NOT NULL DEFAULT 0,
  sequence_order INTEGER NOT NULL DEFAULT 0,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	pandhamStocks := `
CREATE TABLE IF NOT EXISTS pandham_stocks (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL UNIQUE,
  initial_stock INTEGER NOT NULL DEFAULT 0,
  current_stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	stockTransactions := `
CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  details TEXT NOT NULL DEFAULT '',
  created_at DATETIME
);`
	targetGroups := `
CREATE TABLE IF NOT EXISTS target_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  priority INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(books).Error)
	require.NoError(t, db.Exec(pandhamStocks).Error)
	require.NoError(t, db.Exec(stockTransactions).Error)
	require.NoError(t, db.Exec(targetGroups).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestCreateBookSeedsCurrentStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	book, err := svc.CreateBook(context.Background(), CreateBookInput{
		Name:         "Dhamma Primer",
		Price:        decimal.NewFromInt(99),
		InitialStock: 50,
		IsAvailable:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, book.CurrentStock)

	fetched, err := svc.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dhamma Primer", fetched.Name)
	assert.Equal(t, 50, fetched.CurrentStock)
}

func TestCreateBookValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	tests := []struct {
		name  string
		input CreateBookInput
	}{
		{name: "empty name", input: CreateBookInput{Name: "   "}},
		{name: "negative stock", input: CreateBookInput{Name: "x", InitialStock: -1}},
		{name: "negative minimum", input: CreateBookInput{Name: "x", MinimumStockLevel: -1}},
		{name: "negative price", input: CreateBookInput{Name: "x", Price: decimal.NewFromInt(-1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBook(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestListBooksOrdersAndFilters(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.CreateBook(context.Background(), CreateBookInput{Name: "Second", SequenceOrder: 2, IsAvailable: true})
	require.NoError(t, err)
	_, err = svc.CreateBook(context.Background(), CreateBookInput{Name: "First", SequenceOrder: 1, IsAvailable: true})
	require.NoError(t, err)
	_, err = svc.CreateBook(context.Background(), CreateBookInput{Name: "Hidden", SequenceOrder: 0, IsAvailable: false})
	require.NoError(t, err)

	visible, err := svc.ListBooks(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "First", visible[0].Name)
	assert.Equal(t, "Second", visible[1].Name)

	all, err := svc.ListBooks(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateBookPartial(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	book, err := svc.CreateBook(context.Background(), CreateBookInput{Name: "Old Title", InitialStock: 5, IsAvailable: true})
	require.NoError(t, err)

	newName := "New Title"
	hidden := false
	updated, err := svc.UpdateBook(context.Background(), book.ID, UpdateBookInput{
		Name:        &newName,
		IsAvailable: &hidden,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Name)
	assert.False(t, updated.IsAvailable)
	// Untouched fields survive a partial update.
	assert.Equal(t, 5, updated.CurrentStock)
}

func TestUpdateBookNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	name := "x"
	_, err := svc.UpdateBook(context.Background(), uuid.New(), UpdateBookInput{Name: &name})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteBookWithoutHistory(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	book, err := svc.CreateBook(context.Background(), CreateBookInput{Name: "Ephemeral"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(context.Background(), book.ID))

	_, err = svc.GetBook(context.Background(), book.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteBookWithLedgerHistoryRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	book, err := svc.CreateBook(context.Background(), CreateBookInput{Name: "Ledgered", InitialStock: 3})
	require.NoError(t, err)

	row := models.StockTransaction{
		ID:       uuid.New(),
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeReceive,
		Quantity: 3,
	}
	require.NoError(t, db.Create(&row).Error)

	err = svc.DeleteBook(context.Background(), book.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.GetBook(context.Background(), book.ID)
	assert.NoError(t, err)
}

func TestListTargetGroupsByPriority(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	for _, g := range []models.TargetGroup{
		{ID: uuid.New(), Name: "Schools", Priority: 2},
		{ID: uuid.New(), Name: "Temples", Priority: 1},
	} {
		require.NoError(t, db.Create(&g).Error)
	}

	groups, err := svc.ListTargetGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Temples", groups[0].Name)
}
