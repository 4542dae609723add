package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lingkar-ai/lingkar-backend/internal/cashflow"
	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	"github.com/lingkar-ai/lingkar-backend/pkg/db/models"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) GenerateText(ctx context.Context, model string, contents []*genai.Content) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeLedger struct {
	cashflow.Service
	created []cashflow.CreateEntryInput
	err     error
}

func (f *fakeLedger) Create(ctx context.Context, input cashflow.CreateEntryInput) (*models.CashFlowEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, input)
	return &models.CashFlowEntry{
		ID:             uuid.New(),
		BorrowerNumber: input.BorrowerNumber,
		Kind:           input.Kind,
		Amount:         input.Amount,
	}, nil
}

func newTestService(t *testing.T, generator textGenerator, ledger cashflow.Service) Service {
	t.Helper()
	extractor := &geminiExtractor{generator: generator, model: "gemini-2.0-flash"}
	svc, err := NewService(extractor, ledger, config.ExtractionConfig{MaxUploadMB: 1})
	require.NoError(t, err)
	return svc
}

func TestExtractParsesStrictJSON(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{
		response: `[{"kind":"REVENUE","amount":125.50,"description":"vegetable sales"},{"kind":"EXPENSE","amount":40,"description":"seed purchase"}]`,
	}, &fakeLedger{})

	candidates, err := svc.Extract(context.Background(), ExtractInput{MIMEType: "image/jpeg", Data: []byte("photo")})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, enums.CashFlowKindRevenue, candidates[0].Kind)
	assert.True(t, candidates[0].Amount.Equal(decimal.RequireFromString("125.50")))
	assert.Equal(t, "seed purchase", candidates[1].Description)
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{
		response: "```json\n[{\"kind\":\"EXPENSE\",\"amount\":12,\"description\":\"transport\"}]\n```",
	}, &fakeLedger{})

	candidates, err := svc.Extract(context.Background(), ExtractInput{MIMEType: "audio/ogg", Data: []byte("note")})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, enums.CashFlowKindExpense, candidates[0].Kind)
}

func TestExtractModelFailureIsDependencyError(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{err: assert.AnError}, &fakeLedger{})

	_, err := svc.Extract(context.Background(), ExtractInput{MIMEType: "image/jpeg", Data: []byte("photo")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestExtractMalformedResponseIsDependencyError(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{response: "sorry, I could not read the receipt"}, &fakeLedger{})

	_, err := svc.Extract(context.Background(), ExtractInput{MIMEType: "image/jpeg", Data: []byte("photo")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestExtractValidatesInput(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{response: "[]"}, &fakeLedger{})

	_, err := svc.Extract(context.Background(), ExtractInput{MIMEType: "image/jpeg"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Extract(context.Background(), ExtractInput{Data: []byte("photo")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	oversized := make([]byte, 2*1024*1024)
	_, err = svc.Extract(context.Background(), ExtractInput{MIMEType: "image/jpeg", Data: oversized})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConfirmCreatesOneEntryPerCandidate(t *testing.T) {
	ledger := &fakeLedger{}
	svc := newTestService(t, &fakeGenerator{}, ledger)

	occurredAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	result, err := svc.Confirm(context.Background(), ConfirmInput{
		BorrowerNumber: "BRW-001",
		OccurredAt:     occurredAt,
		Candidates: []Candidate{
			{Kind: enums.CashFlowKindRevenue, Amount: decimal.NewFromInt(200), Description: "market day"},
			{Kind: enums.CashFlowKindExpense, Amount: decimal.NewFromInt(45), Description: "stock"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.EntryIDs, 2)

	require.Len(t, ledger.created, 2)
	assert.Equal(t, "BRW-001", ledger.created[0].BorrowerNumber)
	assert.Equal(t, occurredAt, ledger.created[0].OccurredAt)
	assert.Equal(t, enums.CashFlowKindExpense, ledger.created[1].Kind)
}

func TestConfirmRejectsBadCandidateBeforeWriting(t *testing.T) {
	ledger := &fakeLedger{}
	svc := newTestService(t, &fakeGenerator{}, ledger)

	_, err := svc.Confirm(context.Background(), ConfirmInput{
		BorrowerNumber: "BRW-001",
		Candidates: []Candidate{
			{Kind: enums.CashFlowKindRevenue, Amount: decimal.NewFromInt(10)},
			{Kind: "TRANSFER", Amount: decimal.NewFromInt(5)},
		},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, ledger.created, "validation must run before any write")

	_, err = svc.Confirm(context.Background(), ConfirmInput{
		BorrowerNumber: "BRW-001",
		Candidates: []Candidate{
			{Kind: enums.CashFlowKindExpense, Amount: decimal.NewFromInt(-5)},
		},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, ledger.created)
}

func TestConfirmRequiresCandidates(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{}, &fakeLedger{})

	_, err := svc.Confirm(context.Background(), ConfirmInput{BorrowerNumber: "BRW-001"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
