package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lingkar-ai/lingkar-backend/internal/cashflow"
	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

// Service runs the extract-then-confirm flow. Extract only proposes
// candidates; Confirm is the single write path and creates one ledger entry
// per confirmed candidate.
type Service interface {
	Extract(ctx context.Context, input ExtractInput) ([]Candidate, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
}

// ExtractInput is one media upload to mine for transactions.
type ExtractInput struct {
	MIMEType string
	Data     []byte
}

// ConfirmInput persists the candidates the user accepted.
type ConfirmInput struct {
	BorrowerNumber string
	OccurredAt     time.Time
	Candidates     []Candidate
}

// ConfirmResult lists the ids of the entries created.
type ConfirmResult struct {
	EntryIDs []uuid.UUID `json:"entry_ids"`
}

type service struct {
	extractor Extractor
	ledger    cashflow.Service
	maxBytes  int
}

// NewService wires the extraction flow.
func NewService(extractor Extractor, ledger cashflow.Service, cfg config.ExtractionConfig) (Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("cash flow service required")
	}
	return &service{
		extractor: extractor,
		ledger:    ledger,
		maxBytes:  cfg.MaxUploadMB * 1024 * 1024,
	}, nil
}

func (s *service) Extract(ctx context.Context, input ExtractInput) ([]Candidate, error) {
	if len(input.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media payload is required")
	}
	if input.MIMEType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media mime type is required")
	}
	if s.maxBytes > 0 && len(input.Data) > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media payload exceeds upload limit")
	}
	return s.extractor.Extract(ctx, Media{MIMEType: input.MIMEType, Data: input.Data})
}

// Confirm validates every candidate up front so a bad one creates nothing,
// then writes the entries in order.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	if input.BorrowerNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required")
	}
	if len(input.Candidates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one candidate is required")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	for i, candidate := range input.Candidates {
		if !candidate.Kind.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("candidate %d: invalid kind", i))
		}
		if candidate.Amount.Sign() < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("candidate %d: amount must not be negative", i))
		}
	}

	result := &ConfirmResult{EntryIDs: make([]uuid.UUID, 0, len(input.Candidates))}
	for _, candidate := range input.Candidates {
		entry, err := s.ledger.Create(ctx, cashflow.CreateEntryInput{
			BorrowerNumber: input.BorrowerNumber,
			Kind:           candidate.Kind,
			Amount:         candidate.Amount,
			Description:    candidate.Description,
			OccurredAt:     occurredAt,
		})
		if err != nil {
			return nil, err
		}
		result.EntryIDs = append(result.EntryIDs, entry.ID)
	}
	return result, nil
}
