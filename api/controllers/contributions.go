package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/ptfoundation/pandham-backend/api/responses"
	"github.com/ptfoundation/pandham-backend/api/validators"
	"github.com/ptfoundation/pandham-backend/internal/contributions"
	"github.com/ptfoundation/pandham-backend/internal/otp"
	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
)

type createContributionRequest struct {
	BookID            uuid.UUID   `json:"book_id" validate:"required"`
	AmountContributed string      `json:"amount_contributed"`
	TotalBooks        int         `json:"total_books" validate:"min=0"`
	BooksGiven        int         `json:"books_given" validate:"min=0"`
	TargetGroupIDs    []uuid.UUID `json:"target_group_ids"`
	DonorName         string      `json:"donor_name"`
	Phone             string      `json:"phone" validate:"required"`
	OTPCode           string      `json:"otp_code" validate:"required"`
	ShippingAddress   *string     `json:"shipping_address"`
	Note              *string     `json:"note"`
}

type createContributionResponse struct {
	Contribution  contributionResponse `json:"contribution"`
	StockWarnings []string             `json:"stock_warnings,omitempty"`
}

// CreateContribution records a pledge after verifying the donor's one-time
// code. The code is consumed even when the pledge itself is rejected.
func CreateContribution(svc contributions.Service, otpSvc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createContributionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		phone, err := validators.NormalizePhone(body.Phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := otpSvc.Verify(r.Context(), phone, body.OTPCode); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount := decimal.Zero
		if body.AmountContributed != "" {
			amount, err = decimal.NewFromString(body.AmountContributed)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "amount_contributed must be a decimal number"))
				return
			}
		}

		result, err := svc.Create(r.Context(), contributions.CreateInput{
			BookID:            body.BookID,
			AmountContributed: amount,
			TotalBooks:        body.TotalBooks,
			BooksGiven:        body.BooksGiven,
			TargetGroupIDs:    body.TargetGroupIDs,
			DonorName:         body.DonorName,
			PhoneNumber:       phone,
			ShippingAddress:   body.ShippingAddress,
			Note:              body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createContributionResponse{
			Contribution: toContributionResponse(*result.Contribution),
		}
		for _, warning := range multierr.Errors(result.StockWarnings) {
			resp.StockWarnings = append(resp.StockWarnings, warning.Error())
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

func GetContribution(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")
		contribution, err := svc.GetByReference(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toContributionResponse(*contribution))
	}
}

type notifyPaymentRequest struct {
	Note *string `json:"note"`
}

// NotifyPayment lets a donor flag a pledge as paid. Repeats are accepted so
// the donor can safely retry.
func NotifyPayment(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")

		var body notifyPaymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		contribution, err := svc.NotifyPayment(r.Context(), reference, body.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toContributionResponse(*contribution))
	}
}

// ListContributions serves the admin pledge listing.
func ListContributions(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, next, err := svc.List(r.Context(), contributions.ListInput{
			BookID:     bookID,
			OnlyOpen:   validators.ParseQueryBool(r, "only_open"),
			Pagination: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope[contributionResponse]{
			Items:      toContributionResponses(rows),
			NextCursor: next,
		})
	}
}

// CompleteContribution marks a pledge's payment as reconciled.
func CompleteContribution(svc contributions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")
		contribution, err := svc.MarkCompleted(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toContributionResponse(*contribution))
	}
}
