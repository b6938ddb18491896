package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ptfoundation/pandham-backend/api/middleware"
	"github.com/ptfoundation/pandham-backend/api/responses"
	"github.com/ptfoundation/pandham-backend/api/validators"
	"github.com/ptfoundation/pandham-backend/internal/inventory"
	"github.com/ptfoundation/pandham-backend/pkg/enums"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
)

type recordTransactionRequest struct {
	BookID   uuid.UUID `json:"book_id" validate:"required"`
	Type     string    `json:"type" validate:"required"`
	Quantity int       `json:"quantity" validate:"required"`
	Details  string    `json:"details"`
}

// RecordTransaction posts a manual ledger entry. Pledge and fulfillment
// entries are reserved for the intake and matching flows.
func RecordTransaction(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body recordTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txType, err := enums.ParseStockTransactionType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
			return
		}

		switch txType {
		case enums.StockTransactionTypeGivePledge, enums.StockTransactionTypeRequestFulfilled:
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("transaction type %q cannot be recorded manually", txType)))
			return
		}

		details := strings.TrimSpace(body.Details)
		if admin := middleware.AdminEmailFromContext(r.Context()); admin != "" {
			if details == "" {
				details = "recorded by " + admin
			} else {
				details = details + " (recorded by " + admin + ")"
			}
		}

		row, err := svc.Record(r.Context(), inventory.RecordTransactionInput{
			BookID:   body.BookID,
			Type:     txType,
			Quantity: body.Quantity,
			Details:  details,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTransactionResponse(*row))
	}
}

// ListTransactions pages through the ledger, newest first.
func ListTransactions(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := validators.ParseQueryUUID(r, "book_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := inventory.ListTransactionsInput{
			BookID:     bookID,
			Pagination: page,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			txType, err := enums.ParseStockTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
			input.Type = &txType
		}

		rows, next, err := svc.ListTransactions(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope[transactionResponse]{
			Items:      toTransactionResponses(rows),
			NextCursor: next,
		})
	}
}
