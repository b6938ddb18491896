package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ptfoundation/pandham-backend/api/responses"
	"github.com/ptfoundation/pandham-backend/api/validators"
	"github.com/ptfoundation/pandham-backend/internal/otp"
	"github.com/ptfoundation/pandham-backend/internal/requests"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
)

type submitRequestRequest struct {
	BookID          uuid.UUID  `json:"book_id" validate:"required"`
	Quantity        int        `json:"quantity" validate:"required,min=1"`
	TargetGroupID   *uuid.UUID `json:"target_group_id"`
	RecipientName   string     `json:"recipient_name" validate:"required"`
	Phone           string     `json:"phone" validate:"required"`
	OTPCode         string     `json:"otp_code" validate:"required"`
	ShippingAddress *string    `json:"shipping_address"`
	AcceptTerms     bool       `json:"accept_terms"`
}

// SubmitRequest accepts a book request after verifying the requester's
// one-time code. The response tells the caller whether the request matched a
// pledge immediately or joined the waiting queue.
func SubmitRequest(svc requests.Service, otpSvc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitRequestRequest
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

		req, err := svc.Submit(r.Context(), requests.SubmitInput{
			BookID:          body.BookID,
			Quantity:        body.Quantity,
			TargetGroupID:   body.TargetGroupID,
			RecipientName:   body.RecipientName,
			PhoneNumber:     phone,
			ShippingAddress: body.ShippingAddress,
			AcceptTerms:     body.AcceptTerms,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toRequestResponse(*req))
	}
}

func GetRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")
		req, err := svc.GetByReference(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRequestResponse(*req))
	}
}

// ListRequests serves the admin request listing.
func ListRequests(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, next, err := svc.List(r.Context(), requests.ListInput{
			BookID:      bookID,
			OnlyWaiting: validators.ParseQueryBool(r, "only_waiting"),
			Pagination:  page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope[requestResponse]{
			Items:      toRequestResponses(rows),
			NextCursor: next,
		})
	}
}

// ReevaluateRequest retries matching for one waiting request.
func ReevaluateRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")
		req, err := svc.GetByReference(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Reevaluate(r.Context(), req.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRequestResponse(*updated))
	}
}
