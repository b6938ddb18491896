package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/ptfoundation/pandham-backend/pkg/db"
	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	"github.com/ptfoundation/pandham-backend/pkg/enums"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(books).Error)
	require.NoError(t, db.Exec(pandhamStocks).Error)
	require.NoError(t, db.Exec(stockTransactions).Error)
	require.NoError(t, db.Exec(outboxEvents).Error)
	return db
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(conn),
		dbpkg.NewWithConn(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		nil,
	)
	require.NoError(t, err)
	return svc
}

func createBook(t *testing.T, db *gorm.DB, stock, minimum int) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:                uuid.New(),
		Name:              "Test Book",
		CurrentStock:      stock,
		InitialStock:      stock,
		MinimumStockLevel: minimum,
		IsAvailable:       true,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func mainStock(t *testing.T, db *gorm.DB, bookID uuid.UUID) int {
	t.Helper()
	var book models.Book
	require.NoError(t, db.Where("id = ?", bookID).First(&book).Error)
	return book.CurrentStock
}

func giveStock(t *testing.T, db *gorm.DB, bookID uuid.UUID) int {
	t.Helper()
	var row models.PandhamStock
	err := db.Where("book_id = ?", bookID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0
	}
	require.NoError(t, err)
	return row.CurrentStock
}

func ledgerCount(t *testing.T, db *gorm.DB, bookID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.StockTransaction{}).Where("book_id = ?", bookID).Count(&count).Error)
	return count
}

func TestRecordReceiveIncreasesMainStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 0)

	row, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeReceive,
		Quantity: 5,
		Details:  "printing batch 7",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.StockTransactionTypeReceive, row.Type)
	assert.Equal(t, 15, mainStock(t, db, book.ID))
	assert.Equal(t, int64(1), ledgerCount(t, db, book.ID))
}

func TestRecordGivePledgeMovesStockIntoGivePool(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeGivePledge,
		Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, mainStock(t, db, book.ID))
	assert.Equal(t, 4, giveStock(t, db, book.ID))
}

func TestRecordGivePledgePoolRowAlreadyPresent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 0)

	// Another intake created the pool row first; the insert must yield to it.
	existing := models.PandhamStock{ID: uuid.New(), BookID: book.ID, CurrentStock: 2}
	require.NoError(t, db.Create(&existing).Error)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeGivePledge,
		Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, giveStock(t, db, book.ID))

	var count int64
	require.NoError(t, db.Model(&models.PandhamStock{}).Where("book_id = ?", book.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordSupportAndDonateDecreaseMainStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeSupportPrint,
		Quantity: 3,
	})
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeDonate,
		Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, mainStock(t, db, book.ID))
	assert.Equal(t, 0, giveStock(t, db, book.ID))
}

func TestRecordRequestFulfilledDrawsFromGivePool(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeGivePledge,
		Quantity: 2,
	})
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeRequestFulfilled,
		Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, giveStock(t, db, book.ID))
	// Fulfilment never touches the main pool.
	assert.Equal(t, 8, mainStock(t, db, book.ID))
}

func TestRecordRequestFulfilledEmptyPool(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeRequestFulfilled,
		Quantity: 1,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, int64(0), ledgerCount(t, db, book.ID))
}

func TestRecordInsufficientMainStockRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 2, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeSupportPrint,
		Quantity: 3,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 2, mainStock(t, db, book.ID))
	assert.Equal(t, int64(0), ledgerCount(t, db, book.ID))
}

func TestRecordAdjustmentSigned(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 5, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeAdjustment,
		Quantity: -3,
		Details:  "damaged in storage",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, mainStock(t, db, book.ID))

	_, err = svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeAdjustment,
		Quantity: -5,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	_, err = svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeAdjustment,
		Quantity: 0,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordUnknownBook(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   uuid.New(),
		Type:     enums.StockTransactionTypeReceive,
		Quantity: 1,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRecordEmitsStockLowEvent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 5, 3)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeSupportPrint,
		Quantity: 3,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventStockLow, book.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStockLevels(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 10, 1)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeGivePledge,
		Quantity: 4,
	})
	require.NoError(t, err)

	levels, err := svc.StockLevels(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, levels.MainStock)
	assert.Equal(t, 4, levels.GiveStock)
	assert.Equal(t, 1, levels.MinimumStockLevel)
	assert.True(t, levels.IsAvailable)
}

func TestListTransactionsPagination(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 100, 0)

	for i := 0; i < 5; i++ {
		_, err := svc.Record(context.Background(), RecordTransactionInput{
			BookID:   book.ID,
			Type:     enums.StockTransactionTypeReceive,
			Quantity: i + 1,
		})
		require.NoError(t, err)
	}

	first, cursor, err := svc.ListTransactions(context.Background(), ListTransactionsInput{
		BookID:     &book.ID,
		Pagination: pagination.Params{Limit: 3},
	})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.NotEmpty(t, cursor)

	rest, next, err := svc.ListTransactions(context.Background(), ListTransactionsInput{
		BookID:     &book.ID,
		Pagination: pagination.Params{Limit: 3, Cursor: cursor},
	})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Empty(t, next)

	seen := map[uuid.UUID]bool{}
	for _, row := range append(first, rest...) {
		require.False(t, seen[row.ID], "row %s returned twice", row.ID)
		seen[row.ID] = true
	}
}

func TestListTransactionsTypeFilter(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	book := createBook(t, db, 100, 0)

	_, err := svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeReceive,
		Quantity: 10,
	})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), RecordTransactionInput{
		BookID:   book.ID,
		Type:     enums.StockTransactionTypeGivePledge,
		Quantity: 2,
	})
	require.NoError(t, err)

	pledge := enums.StockTransactionTypeGivePledge
	rows, _, err := svc.ListTransactions(context.Background(), ListTransactionsInput{
		BookID: &book.ID,
		Type:   &pledge,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.StockTransactionTypeGivePledge, rows[0].Type)
}
