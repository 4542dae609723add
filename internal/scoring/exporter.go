package scoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	pkgbigquery "github.com/lingkar-ai/lingkar-backend/pkg/bigquery"
)

const (
	defaultExportAttempts = 3
	defaultExportBackoff  = 250 * time.Millisecond
	maximumExportBackoff  = 2 * time.Second
)

// ScoreEventRow is one computed score exported for offline analytics.
type ScoreEventRow struct {
	SubjectType string    `bigquery:"subject_type"`
	SubjectID   string    `bigquery:"subject_id"`
	AnchorDate  time.Time `bigquery:"anchor_date"`
	Risk        float64   `bigquery:"risk"`
	ComputedAt  time.Time `bigquery:"computed_at"`
}

// Exporter ships score events somewhere out-of-band. Export failures must
// never fail the scoring run itself.
type Exporter interface {
	ExportScore(ctx context.Context, row ScoreEventRow) error
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryExporter inserts score events into BigQuery with bounded retries.
type BigQueryExporter struct {
	client tableInserter
	table  string
}

// NewBigQueryExporter builds an exporter backed by a shared client.
func NewBigQueryExporter(client *pkgbigquery.Client, table string) (*BigQueryExporter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("score event table is required")
	}
	return &BigQueryExporter{client: client, table: table}, nil
}

func (e *BigQueryExporter) ExportScore(ctx context.Context, row ScoreEventRow) error {
	attempts := 0
	backoff := defaultExportBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.client.InsertRows(ctx, e.table, []any{&row})
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= defaultExportAttempts || !isRetryableInsertError(err) {
			return fmt.Errorf("insert %s row: %w", e.table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		timer.Stop()

		if backoff *= 2; backoff > maximumExportBackoff {
			backoff = maximumExportBackoff
		}
	}
}

func isRetryableInsertError(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.PutMultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, rowErr := range multi {
			for _, inner := range rowErr.Errors {
				if !isRetryableInsertError(inner) {
					return false
				}
			}
		}
		return true
	}

	var bqErr *cbigquery.Error
	if errors.As(err, &bqErr) {
		reason := strings.ToLower(bqErr.Reason)
		return reason == "backenderror" || reason == "ratelimitexceeded" || reason == "internalerror"
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusTooManyRequests:
			return true
		}
		return false
	}

	return false
}
