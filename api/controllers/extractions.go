package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/lingkar-ai/lingkar-backend/api/responses"
	"github.com/lingkar-ai/lingkar-backend/api/validators"
	"github.com/lingkar-ai/lingkar-backend/internal/extraction"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

const mediaFormField = "media"

// ExtractionCreate accepts a multipart upload (a receipt photo or voice
// note) and returns candidate transactions without persisting anything.
func ExtractionCreate(svc extraction.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	maxBytes := int64(maxUploadMB) * 1024 * 1024
	return func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		file, header, err := r.FormFile(mediaFormField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "media file is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read media file"))
			return
		}
		candidates, err := svc.Extract(r.Context(), extraction.ExtractInput{
			MIMEType: header.Header.Get("Content-Type"),
			Data:     data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"candidates": candidates})
	}
}

type extractionConfirmRequest struct {
	BorrowerNumber string                 `json:"borrower_number" validate:"required"`
	OccurredAt     time.Time              `json:"occurred_at,omitempty"`
	Candidates     []extraction.Candidate `json:"candidates" validate:"required,min=1"`
}

// ExtractionConfirm persists the accepted candidates as ledger entries.
func ExtractionConfirm(svc extraction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload extractionConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Confirm(r.Context(), extraction.ConfirmInput{
			BorrowerNumber: payload.BorrowerNumber,
			OccurredAt:     payload.OccurredAt,
			Candidates:     payload.Candidates,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
