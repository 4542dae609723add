package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lingkar-ai/lingkar-backend/api/controllers"
	"github.com/lingkar-ai/lingkar-backend/api/middleware"
	"github.com/lingkar-ai/lingkar-backend/internal/aggregate"
	"github.com/lingkar-ai/lingkar-backend/internal/borrowers"
	"github.com/lingkar-ai/lingkar-backend/internal/cashflow"
	"github.com/lingkar-ai/lingkar-backend/internal/extraction"
	"github.com/lingkar-ai/lingkar-backend/internal/risk"
	"github.com/lingkar-ai/lingkar-backend/internal/scoring"
	"github.com/lingkar-ai/lingkar-backend/pkg/config"
	"github.com/lingkar-ai/lingkar-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers. Optional entries
// (pingers, publisher, extraction) may be nil; their routes degrade or 404.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DBPinger controllers.Pinger
	Redis    controllers.Pinger

	CashFlows  cashflow.Service
	Aggregates aggregate.Service
	Risk       risk.Service
	Borrowers  borrowers.Service
	Scoring    scoring.Service
	Extraction extraction.Service

	ScoringPublisher controllers.TriggerPublisher
	MetricsGatherer  prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.Redis))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/cashflows", func(r chi.Router) {
			r.Post("/", controllers.CashFlowCreate(deps.CashFlows, logg))
			r.Get("/", controllers.CashFlowList(deps.CashFlows, logg))
			r.Get("/summary", controllers.CashFlowTotals(deps.Aggregates, logg))
			r.Get("/totals", controllers.CashFlowKindTotal(deps.Aggregates, logg))
			r.Get("/buckets", controllers.CashFlowBuckets(deps.Aggregates, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.CashFlowGet(deps.CashFlows, logg))
				r.Patch("/", controllers.CashFlowUpdate(deps.CashFlows, logg))
				r.Delete("/", controllers.CashFlowDelete(deps.CashFlows, logg))
			})
		})

		r.Route("/risk", func(r chi.Router) {
			r.Get("/borrowers/{number}", controllers.RiskBorrowerStatus(deps.Risk, logg))
			r.Get("/circles/{id}", controllers.RiskCircle(deps.Risk, logg))
			r.Get("/members/{number}", controllers.RiskForMember(deps.Risk, logg))
			r.Post("/snapshots", controllers.RiskRecord(deps.Risk, logg))
			r.Post("/snapshots/correct", controllers.RiskCorrect(deps.Risk, logg))
			r.Get("/overview", controllers.RiskOverview(deps.Risk, logg))
		})

		r.Route("/borrowers", func(r chi.Router) {
			r.Post("/", controllers.BorrowerCreate(deps.Borrowers, logg))
			r.Get("/", controllers.BorrowerList(deps.Borrowers, logg))
			r.Get("/{number}", controllers.BorrowerGet(deps.Borrowers, logg))
			r.Post("/{number}/loans", controllers.LoanSnapshotCreate(deps.Borrowers, logg))
		})

		r.Route("/circles", func(r chi.Router) {
			r.Post("/", controllers.CircleCreate(deps.Borrowers, logg))
			r.Get("/{id}", controllers.CircleGet(deps.Borrowers, logg))
		})

		r.Route("/scores", func(r chi.Router) {
			r.Post("/borrowers/{number}", controllers.ScoreBorrowerTrigger(deps.ScoringPublisher, deps.Scoring, logg))
			r.Post("/circles/{id}", controllers.ScoreCircleTrigger(deps.ScoringPublisher, deps.Scoring, logg))
		})

		if deps.Extraction != nil {
			r.Route("/extractions", func(r chi.Router) {
				r.Post("/", controllers.ExtractionCreate(deps.Extraction, cfg.Extraction.MaxUploadMB, logg))
				r.Post("/confirm", controllers.ExtractionConfirm(deps.Extraction, logg))
			})
		}
	})

	return r
}
