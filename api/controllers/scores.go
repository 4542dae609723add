package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/go-chi/chi/v5"

	"github.com/lingkar-ai/lingkar-backend/api/responses"
	"github.com/lingkar-ai/lingkar-backend/internal/scoring"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

const scorePublishTimeout = 10 * time.Second

// TriggerPublisher pushes an on-demand scoring request onto the worker queue.
type TriggerPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

// ScoreBorrowerTrigger enqueues an on-demand scoring run for one borrower.
// Without a publisher configured the run executes inline instead.
func ScoreBorrowerTrigger(publisher TriggerPublisher, svc scoring.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "borrower number is required"))
			return
		}

		if publisher == nil {
			snapshot, err := svc.ScoreBorrower(r.Context(), number, time.Now().UTC())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
			return
		}

		payload, err := json.Marshal(scoring.TriggerMessage{BorrowerNumber: number})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode trigger"))
			return
		}
		publishCtx, cancel := context.WithTimeout(r.Context(), scorePublishTimeout)
		defer cancel()
		result := publisher.Publish(publishCtx, &gcppubsub.Message{Data: payload})
		if _, err := result.Get(publishCtx); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish scoring trigger"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"status":          "queued",
			"borrower_number": number,
		})
	}
}

// ScoreCircleTrigger works like the borrower trigger for a whole circle.
func ScoreCircleTrigger(publisher TriggerPublisher, svc scoring.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		circleID := chi.URLParam(r, "id")
		if circleID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "circle id is required"))
			return
		}

		if publisher == nil {
			snapshot, err := svc.ScoreCircle(r.Context(), circleID, time.Now().UTC())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, snapshot)
			return
		}

		payload, err := json.Marshal(scoring.TriggerMessage{CircleID: circleID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode trigger"))
			return
		}
		publishCtx, cancel := context.WithTimeout(r.Context(), scorePublishTimeout)
		defer cancel()
		result := publisher.Publish(publishCtx, &gcppubsub.Message{Data: payload})
		if _, err := result.Get(publishCtx); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish scoring trigger"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"status":    "queued",
			"circle_id": circleID,
		})
	}
}
