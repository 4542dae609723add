package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lingkar-ai/lingkar-backend/api/responses"
	"github.com/lingkar-ai/lingkar-backend/api/validators"
	"github.com/lingkar-ai/lingkar-backend/internal/risk"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

// RiskBorrowerStatus resolves a borrower's snapshot for the queried date and
// pairs it with the prior week for trend display.
func RiskBorrowerStatus(svc risk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := queryDateOrNow(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.BorrowerStatus(r.Context(), chi.URLParam(r, "number"), at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func RiskCircle(svc risk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := queryDateOrNow(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resolution, err := svc.ResolveCircle(r.Context(), chi.URLParam(r, "id"), at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}

// RiskForMember resolves the circle snapshot covering the given borrower as
// a member.
func RiskForMember(svc risk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := queryDateOrNow(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resolution, err := svc.ResolveForMember(r.Context(), chi.URLParam(r, "number"), at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}

type riskRecordRequest struct {
	BorrowerNumber string    `json:"borrower_number,omitempty"`
	CircleID       string    `json:"circle_id,omitempty"`
	MemberNumbers  []string  `json:"member_numbers,omitempty"`
	Date           time.Time `json:"date" validate:"required"`
	Value          float64   `json:"value"`
}

// RiskRecord persists a snapshot for either a borrower or a circle. Exactly
// one subject must be named.
func RiskRecord(svc risk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload riskRecordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		switch {
		case payload.BorrowerNumber != "" && payload.CircleID != "":
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "name either a borrower or a circle, not both"))
		case payload.BorrowerNumber != "":
			snapshot, err := svc.RecordBorrower(r.Context(), risk.RecordBorrowerInput{
				BorrowerNumber: payload.BorrowerNumber,
				Date:           payload.Date,
				Value:          payload.Value,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
		case payload.CircleID != "":
			snapshot, err := svc.RecordCircle(r.Context(), risk.RecordCircleInput{
				CircleID:      payload.CircleID,
				MemberNumbers: payload.MemberNumbers,
				Date:          payload.Date,
				Value:         payload.Value,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
		default:
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "borrower_number or circle_id is required"))
		}
	}
}

type riskCorrectRequest struct {
	BorrowerNumber string    `json:"borrower_number,omitempty"`
	CircleID       string    `json:"circle_id,omitempty"`
	Date           time.Time `json:"date" validate:"required"`
	Value          float64   `json:"value"`
}

// RiskCorrect rewrites every snapshot at the subject's anchor in place.
func RiskCorrect(svc risk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload riskCorrectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var (
			updated int64
			err     error
		)
		switch {
		case payload.BorrowerNumber != "" && payload.CircleID != "":
			err = pkgerrors.New(pkgerrors.CodeValidation, "name either a borrower or a circle, not both")
		case payload.BorrowerNumber != "":
			updated, err = svc.CorrectBorrower(r.Context(), risk.CorrectInput{
				Subject: payload.BorrowerNumber,
				Date:    payload.Date,
				Value:   payload.Value,
			})
		case payload.CircleID != "":
			updated, err = svc.CorrectCircle(r.Context(), risk.CorrectInput{
				Subject: payload.CircleID,
				Date:    payload.Date,
				Value:   payload.Value,
			})
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "borrower_number or circle_id is required")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}

func RiskOverview(svc risk.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := svc.Overview(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

func queryDateOrNow(r *http.Request) (time.Time, error) {
	at, err := validators.ParseQueryTime(r, "at")
	if err != nil {
		return time.Time{}, err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return at, nil
}
