package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/lingkar-ai/lingkar-backend/api/responses"
	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	pkgerrors "github.com/lingkar-ai/lingkar-backend/pkg/errors"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is the health-check surface shared by the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lingkar-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every wired dependency. Nil pingers are skipped so the
// API can run without optional backends.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lingkar-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		for name, pinger := range map[string]Pinger{"db": db, "redis": redis} {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				checks[name] = "down"
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable").WithDetails(checks))
				return
			}
			checks[name] = "ok"
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
