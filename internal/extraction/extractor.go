package extraction

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	"github.com/lingkar-ai/lingkar-backend/pkg/enums"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

// Candidate is one transaction the model proposed from the uploaded media.
// Nothing is persisted until the caller confirms it.
type Candidate struct {
	Kind        enums.CashFlowKind `json:"kind"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description"`
}

// Media is the raw upload handed to the extractor.
type Media struct {
	MIMEType string
	Data     []byte
}

// Extractor turns a receipt photo or voice note into transaction candidates.
type Extractor interface {
	Extract(ctx context.Context, media Media) ([]Candidate, error)
}

// textGenerator is the slice of the genai client the extractor needs.
type textGenerator interface {
	GenerateText(ctx context.Context, model string, contents []*genai.Content) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) GenerateText(ctx context.Context, model string, contents []*genai.Content) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

type geminiExtractor struct {
	generator textGenerator
	model     string
}

// NewGeminiExtractor builds the production extractor against the Gemini API.
// Credentials come from the ambient GOOGLE_API_KEY / application default
// credentials, same as the rest of the GCP clients.
func NewGeminiExtractor(ctx context.Context, cfg config.ExtractionConfig) (Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: cfg.APIVersion},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create genai client")
	}
	return &geminiExtractor{generator: &genaiGenerator{client: client}, model: cfg.Model}, nil
}

const extractionPrompt = "You are a bookkeeping assistant for informal micro-businesses.\n\n" +
	"Task:\n" +
	"- Identify every revenue or expense transaction in the attached media\n" +
	"  (a receipt photo or a voice note describing sales and purchases).\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"kind\": string, either \"REVENUE\" (money in) or \"EXPENSE\" (money out)\n" +
	"- \"amount\": number, always positive\n" +
	"- \"description\": string, short summary of the transaction\n\n" +
	"Rules:\n" +
	"- Never invent transactions that are not in the media.\n" +
	"- If the media contains no transactions, output an empty array.\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

func (e *geminiExtractor) Extract(ctx context.Context, media Media) ([]Candidate, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: media.MIMEType,
						Data:     media.Data,
					},
				},
			},
		},
	}

	raw, err := e.generator.GenerateText(ctx, e.model, contents)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate content")
	}
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "empty response from model")
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &candidates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unmarshal model response")
	}
	return candidates, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
