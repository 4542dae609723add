package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lingkar-ai/lingkar-backend/internal/features"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
)

// Scorer turns a feature vector into a default probability in [0, 1].
type Scorer interface {
	Score(ctx context.Context, vector *features.Vector) (float64, error)
}

const defaultScorerTimeout = 30 * time.Second

// HTTPScorer calls the external scoring model over HTTP. The scorer is a
// plain JSON POST endpoint: vector in, {"risk": p} out.
type HTTPScorer struct {
	url    string
	client *http.Client
}

type scoreResponse struct {
	Risk float64 `json:"risk"`
}

// NewHTTPScorer builds a scorer client for the configured endpoint.
func NewHTTPScorer(url string, timeout time.Duration) (*HTTPScorer, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("scorer url required")
	}
	if timeout <= 0 {
		timeout = defaultScorerTimeout
	}
	return &HTTPScorer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPScorer) Score(ctx context.Context, vector *features.Vector) (float64, error) {
	body, err := json.Marshal(vector)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode feature vector")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build scorer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call scorer")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("scorer returned status %d", resp.StatusCode))
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode scorer response")
	}
	if decoded.Risk < 0 || decoded.Risk > 1 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("scorer returned risk %v outside [0, 1]", decoded.Risk))
	}
	return decoded.Risk, nil
}
