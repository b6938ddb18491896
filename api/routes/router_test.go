package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ptfoundation/pandham-backend/internal/adminauth"
	"github.com/ptfoundation/pandham-backend/internal/catalog"
	"github.com/ptfoundation/pandham-backend/internal/contributions"
	"github.com/ptfoundation/pandham-backend/internal/inventory"
	"github.com/ptfoundation/pandham-backend/internal/refnum"
	"github.com/ptfoundation/pandham-backend/internal/requests"
	"github.com/ptfoundation/pandham-backend/pkg/config"
	dbpkg "github.com/ptfoundation/pandham-backend/pkg/db"
	"github.com/ptfoundation/pandham-backend/pkg/db/models"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
)

const testOTPCode = "123456"

type stubOTP struct{}

func (stubOTP) Send(ctx context.Context, phone, clientIP string) error { return nil }

func (stubOTP) Verify(ctx context.Context, phone, code string) error {
	if code != testOTPCode {
		return pkgerrors.New(pkgerrors.CodeOTPInvalid, "invalid or expired code")
	}
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
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
);`, `
CREATE TABLE IF NOT EXISTS pandham_stocks (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL UNIQUE,
  initial_stock INTEGER NOT NULL DEFAULT 0,
  current_stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  details TEXT NOT NULL DEFAULT '',
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS target_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  priority INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS contributions (
  id TEXT PRIMARY KEY,
  reference_number TEXT NOT NULL UNIQUE,
  book_id TEXT NOT NULL,
  amount_contributed NUMERIC NOT NULL DEFAULT 0,
  total_books INTEGER NOT NULL DEFAULT 0,
  books_kept INTEGER NOT NULL DEFAULT 0,
  books_given INTEGER NOT NULL DEFAULT 0,
  fulfilled_count INTEGER NOT NULL DEFAULT 0,
  donor_name TEXT NOT NULL DEFAULT 'anonymous',
  phone_number TEXT NOT NULL,
  shipping_address TEXT,
  note TEXT,
  payment_notified INTEGER NOT NULL DEFAULT 0,
  is_completed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS contribution_target_groups (
  contribution_id TEXT NOT NULL,
  target_group_id TEXT NOT NULL,
  PRIMARY KEY (contribution_id, target_group_id)
);`, `
CREATE TABLE IF NOT EXISTS requests (
  id TEXT PRIMARY KEY,
  reference_number TEXT NOT NULL UNIQUE,
  book_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  target_group_id TEXT,
  contribution_id TEXT,
  recipient_name TEXT NOT NULL,
  phone_number TEXT NOT NULL,
  shipping_address TEXT,
  accept_terms INTEGER NOT NULL DEFAULT 0,
  is_waiting INTEGER NOT NULL DEFAULT 0,
  is_completed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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
);`, `
CREATE TABLE IF NOT EXISTS admin_users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type fixture struct {
	db      *gorm.DB
	handler http.Handler
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	client := dbpkg.NewWithConn(db)
	events := outbox.NewService(outbox.NewRepository(db), nil)

	books, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)

	stock, err := inventory.NewService(inventory.NewRepository(db), client, events, nil)
	require.NoError(t, err)

	contribRepo := contributions.NewRepository(db)
	contribs, err := contributions.NewService(contribRepo, client, books, stock, refnum.NewGenerator(), events, nil)
	require.NoError(t, err)

	reqs, err := requests.NewService(requests.NewRepository(db), contribRepo, client, books, stock, refnum.NewGenerator(), events, nil)
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "pandham-backend",
			ExpirationMinutes: 60,
		},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    8,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
	}

	admins, err := adminauth.NewService(adminauth.NewRepository(db), cfg.JWT, cfg.Password, nil)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:        cfg,
		Catalog:       books,
		Inventory:     stock,
		Contributions: contribs,
		Requests:      reqs,
		OTP:           stubOTP{},
		AdminAuth:     admins,
	})
	return &fixture{db: db, handler: handler, cfg: cfg}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func (f *fixture) createBook(t *testing.T, name string, stock int, available bool) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:           uuid.New(),
		Name:         name,
		InitialStock: stock,
		CurrentStock: stock,
		IsAvailable:  available,
	}
	require.NoError(t, f.db.Create(book).Error)
	return book
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/admin/v1/auth/register", map[string]any{
		"email":    "admin@example.org",
		"password": "correct-horse",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/admin/v1/auth/login", map[string]any{
		"email":    "admin@example.org",
		"password": "correct-horse",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &result)
	require.NotEmpty(t, result.Token)
	return result.Token
}

func TestHealthLive(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBooksHidesUnavailable(t *testing.T) {
	f := newFixture(t)
	f.createBook(t, "Visible", 5, true)
	f.createBook(t, "Hidden", 5, false)

	rec := f.do(t, http.MethodGet, "/api/v1/books", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var books []struct {
		Name string `json:"name"`
	}
	decodeData(t, rec, &books)
	require.Len(t, books, 1)
	assert.Equal(t, "Visible", books[0].Name)
}

func TestContributionIntakeOverHTTP(t *testing.T) {
	f := newFixture(t)
	book := f.createBook(t, "Dhamma Primer", 10, true)

	payload := map[string]any{
		"book_id":      book.ID.String(),
		"total_books":  4,
		"books_given":  3,
		"donor_name":   "Somsri",
		"phone":        "0812345678",
		"otp_code":     testOTPCode,
		"amount_contributed": "200.00",
	}

	rec := f.do(t, http.MethodPost, "/api/v1/contributions", payload, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Contribution struct {
			ReferenceNumber string `json:"reference_number"`
			BooksKept       int    `json:"books_kept"`
			BooksGiven      int    `json:"books_given"`
		} `json:"contribution"`
	}
	decodeData(t, rec, &created)
	assert.Equal(t, 1, created.Contribution.BooksKept)
	assert.Equal(t, 3, created.Contribution.BooksGiven)
	require.NotEmpty(t, created.Contribution.ReferenceNumber)

	rec = f.do(t, http.MethodGet, "/api/v1/contributions/"+created.Contribution.ReferenceNumber, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContributionRejectsBadOTP(t *testing.T) {
	f := newFixture(t)
	book := f.createBook(t, "Dhamma Primer", 10, true)

	rec := f.do(t, http.MethodPost, "/api/v1/contributions", map[string]any{
		"book_id":     book.ID.String(),
		"total_books": 2,
		"books_given": 1,
		"phone":       "0812345678",
		"otp_code":    "000000",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeOTPInvalid), errorCode(t, rec))
}

func TestRequestMatchesPledgeOverHTTP(t *testing.T) {
	f := newFixture(t)
	book := f.createBook(t, "Dhamma Primer", 10, true)

	group := &models.TargetGroup{ID: uuid.New(), Name: "Schools"}
	require.NoError(t, f.db.Create(group).Error)

	rec := f.do(t, http.MethodPost, "/api/v1/contributions", map[string]any{
		"book_id":     book.ID.String(),
		"total_books": 5,
		"books_given": 5,
		"phone":       "0811111111",
		"otp_code":    testOTPCode,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"book_id":         book.ID.String(),
		"quantity":        2,
		"target_group_id": group.ID.String(),
		"recipient_name":  "Wat Pa",
		"phone":           "0822222222",
		"otp_code":        testOTPCode,
		"accept_terms":    true,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		IsWaiting       bool   `json:"is_waiting"`
		ReferenceNumber string `json:"reference_number"`
	}
	decodeData(t, rec, &created)
	assert.False(t, created.IsWaiting)
	require.NotEmpty(t, created.ReferenceNumber)

	rec = f.do(t, http.MethodGet, "/api/v1/requests/"+created.ReferenceNumber, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/admin/v1/transactions", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
}

func TestAdminTransactionFlow(t *testing.T) {
	f := newFixture(t)
	book := f.createBook(t, "Dhamma Primer", 0, true)
	token := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/admin/v1/transactions", map[string]any{
		"book_id":  book.ID.String(),
		"type":     "in",
		"quantity": 25,
		"details":  "print run delivery",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/admin/v1/books/"+book.ID.String()+"/stock", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var levels struct {
		MainStock int `json:"main_stock"`
	}
	decodeData(t, rec, &levels)
	assert.Equal(t, 25, levels.MainStock)

	rec = f.do(t, http.MethodGet, "/api/admin/v1/transactions?book_id="+book.ID.String(), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []struct {
			Type     string `json:"type"`
			Quantity int    `json:"quantity"`
		} `json:"items"`
	}
	decodeData(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "in", page.Items[0].Type)
	assert.Equal(t, 25, page.Items[0].Quantity)
}

func TestAdminRecordRejectsReservedTypes(t *testing.T) {
	f := newFixture(t)
	book := f.createBook(t, "Dhamma Primer", 10, true)
	token := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/admin/v1/transactions", map[string]any{
		"book_id":  book.ID.String(),
		"type":     "pandham",
		"quantity": 1,
	}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}
