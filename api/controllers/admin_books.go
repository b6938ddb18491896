package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ptfoundation/pandham-backend/api/responses"
	"github.com/ptfoundation/pandham-backend/api/validators"
	"github.com/ptfoundation/pandham-backend/internal/catalog"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
)

type createBookRequest struct {
	Name              string `json:"name" validate:"required"`
	ShortDescription  string `json:"short_description"`
	Price             string `json:"price"`
	InitialStock      int    `json:"initial_stock" validate:"min=0"`
	MinimumStockLevel int    `json:"minimum_stock_level" validate:"min=0"`
	SequenceOrder     int    `json:"sequence_order"`
	IsAvailable       bool   `json:"is_available"`
}

func CreateBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := parsePrice(body.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.CreateBook(r.Context(), catalog.CreateBookInput{
			Name:              body.Name,
			ShortDescription:  body.ShortDescription,
			Price:             price,
			InitialStock:      body.InitialStock,
			MinimumStockLevel: body.MinimumStockLevel,
			SequenceOrder:     body.SequenceOrder,
			IsAvailable:       body.IsAvailable,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toBookResponse(*book))
	}
}

type updateBookRequest struct {
	Name              *string `json:"name"`
	ShortDescription  *string `json:"short_description"`
	Price             *string `json:"price"`
	MinimumStockLevel *int    `json:"minimum_stock_level"`
	SequenceOrder     *int    `json:"sequence_order"`
	IsAvailable       *bool   `json:"is_available"`
}

// UpdateBook applies a partial update. Absent fields keep their values.
func UpdateBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.UpdateBookInput{
			Name:              body.Name,
			ShortDescription:  body.ShortDescription,
			MinimumStockLevel: body.MinimumStockLevel,
			SequenceOrder:     body.SequenceOrder,
			IsAvailable:       body.IsAvailable,
		}
		if body.Price != nil {
			price, err := parsePrice(*body.Price)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Price = &price
		}

		book, err := svc.UpdateBook(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookResponse(*book))
	}
}

// DeleteBook removes a title. Books with ledger history are refused.
func DeleteBook(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteBook(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal number")
	}
	return price, nil
}
