package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lingkar-ai/lingkar-backend/api/responses"
	"github.com/lingkar-ai/lingkar-backend/api/validators"
	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
	"github.com/lingkar-ai/lingkar-backend/pkg/pagination"
)

type borrowerCreateRequest struct {
	BorrowerNumber  string     `json:"borrower_number" validate:"required"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	MaritalStatus   string     `json:"marital_status,omitempty"`
	Religion        string     `json:"religion,omitempty"`
	BusinessPurpose string     `json:"business_purpose,omitempty"`
}

func BorrowerCreate(svc borrowers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload borrowerCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		borrower, err := svc.CreateBorrower(r.Context(), borrowers.CreateBorrowerInput{
			BorrowerNumber:  payload.BorrowerNumber,
			DateOfBirth:     payload.DateOfBirth,
			MaritalStatus:   validators.SanitizeString(payload.MaritalStatus, 100),
			Religion:        validators.SanitizeString(payload.Religion, 100),
			BusinessPurpose: validators.SanitizeString(payload.BusinessPurpose, 200),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, borrower)
	}
}

func BorrowerGet(svc borrowers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		borrower, err := svc.GetBorrower(r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, borrower)
	}
}

func BorrowerList(svc borrowers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListBorrowers(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type circleCreateRequest struct {
	CircleID      string   `json:"circle_id" validate:"required"`
	Name          string   `json:"name,omitempty"`
	MemberNumbers []string `json:"member_numbers" validate:"required,min=1"`
}

func CircleCreate(svc borrowers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload circleCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		circle, err := svc.CreateCircle(r.Context(), borrowers.CreateCircleInput{
			CircleID:      payload.CircleID,
			Name:          validators.SanitizeString(payload.Name, 200),
			MemberNumbers: payload.MemberNumbers,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, circle)
	}
}

func CircleGet(svc borrowers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		circle, err := svc.GetCircle(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, circle)
	}
}

type loanSnapshotRequest struct {
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	DaysPastDue       int             `json:"days_past_due"`
}

// LoanSnapshotCreate imports one loan position for the borrower in the path.
func LoanSnapshotCreate(svc borrowers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loanSnapshotRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.RecordLoanSnapshot(r.Context(), borrowers.LoanSnapshotInput{
			BorrowerNumber:    chi.URLParam(r, "number"),
			PrincipalAmount:   payload.PrincipalAmount,
			OutstandingAmount: payload.OutstandingAmount,
			DaysPastDue:       payload.DaysPastDue,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
	}
}
