package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lingkar-ai/lingkar-backend/api/responses"
	"github.com/lingkar-ai/lingkar-backend/api/validators"
	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/internal/cashflow"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
	"github.com/lingkar-ai/lingkar-backend/pkg/pagination"
)

type cashFlowCreateRequest struct {
	BorrowerNumber string          `json:"borrower_number" validate:"required"`
	Kind           string          `json:"kind" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Description    string          `json:"description,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at" validate:"required"`
}

// CashFlowCreate records one ledger entry and folds it into the daily bucket.
func CashFlowCreate(svc cashflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cashFlowCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseCashFlowKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}
		entry, err := svc.Create(r.Context(), cashflow.CreateEntryInput{
			BorrowerNumber: payload.BorrowerNumber,
			Kind:           kind,
			Amount:         payload.Amount,
			Description:    validators.SanitizeString(payload.Description, 500),
			OccurredAt:     payload.OccurredAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

type cashFlowUpdateRequest struct {
	Kind        *string          `json:"kind,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	OccurredAt  *time.Time       `json:"occurred_at,omitempty"`
}

// CashFlowUpdate patches an entry; buckets follow the amount, kind, or day
// move in the same transaction.
func CashFlowUpdate(svc cashflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseQueryUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cashFlowUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := cashflow.UpdateEntryInput{
			Amount:      payload.Amount,
			Description: payload.Description,
			OccurredAt:  payload.OccurredAt,
		}
		if payload.Kind != nil {
			kind, err := enums.ParseCashFlowKind(*payload.Kind)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
				return
			}
			input.Kind = &kind
		}
		entry, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func CashFlowGet(svc cashflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseQueryUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func CashFlowDelete(svc cashflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseQueryUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// CashFlowList pages a borrower's entries newest first.
func CashFlowList(svc cashflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := cashflow.ListInput{
			BorrowerNumber: r.URL.Query().Get("borrower_number"),
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Pagination = pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("kind"); raw != "" {
			kind, err := enums.ParseCashFlowKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
				return
			}
			input.Kind = &kind
		}
		if input.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, result.Entries, result.NextCursor)
	}
}

// CashFlowTotals sums bucket totals per kind over the requested window.
func CashFlowTotals(svc aggregate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := aggregate.TotalsInput{
			BorrowerNumber: r.URL.Query().Get("borrower_number"),
		}
		var err error
		if input.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		totals, err := svc.Totals(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

// CashFlowBuckets returns the raw daily buckets for charting.
func CashFlowBuckets(svc aggregate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		borrowerNumber := r.URL.Query().Get("borrower_number")
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		buckets, err := svc.ListBuckets(r.Context(), borrowerNumber, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, buckets)
	}
}

// CashFlowKindTotal returns the total for a single kind over the window.
func CashFlowKindTotal(svc aggregate.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := enums.ParseCashFlowKind(r.URL.Query().Get("kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}
		input := aggregate.TotalsInput{
			BorrowerNumber: r.URL.Query().Get("borrower_number"),
		}
		if input.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		totals, err := svc.Totals(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total := totals.Revenue
		if kind == enums.CashFlowKindExpense {
			total = totals.Expense
		}
		responses.WriteSuccess(w, map[string]any{
			"borrower_number": totals.BorrowerNumber,
			"kind":            kind,
			"total":           total,
		})
	}
}
