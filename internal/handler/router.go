package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blossom/internal/metrics"
	"github.com/hitoshi/blossom/internal/middleware"
	"github.com/hitoshi/blossom/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	Health            repository.HealthChecker

	// 個人デッキ
	DeckService DeckServiceInterface
	Seeder      SeederInterface

	// チーム
	TeamDeckService TeamDeckServiceInterface
	TeamService     TeamServiceInterface
	Gate            TeamGateInterface

	// 学習・プラン
	StudyManager StudyManagerInterface
	PlanService  PlanServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//	  → Session → CSRF → RateLimit(General) [→ RateLimit(TeamMutation)]
//
// /health と /metrics はセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var collector metrics.MetricsCollector = metrics.NopCollector{}
	if deps.Metrics != nil {
		collector = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))

	deckHandler := NewDeckHandler(deps.DeckService, deps.Seeder)
	teamDeckHandler := NewTeamDeckHandler(deps.TeamDeckService, deps.Gate)
	teamHandler := NewTeamHandler(deps.TeamService, deps.Gate)
	studyHandler := NewStudyHandler(deps.StudyManager, deps.DeckService, deps.TeamDeckService, deps.Gate)
	planHandler := NewPlanHandler(deps.PlanService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 任意認証のルート ---
	// チームページは未サインインでもvisibilityを返す
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/teams/{teamId}", teamHandler.GetTeam)
	})

	// --- チームAPI ---
	// ミドルウェアスタック: OptionalSession → CSRF(認証済みのみ) → RateLimit(General)
	// 未認証時は {"error": "Authentication required"} を返す
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.Verifier))
		r.Use(csrfWhenAuthenticated(middleware.NewCSRFMiddleware(deps.CSRFConfig)))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 作成は名前の検証を認証確認より先に行うためハンドラー内で確認する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.TeamMutationMiddleware())

			r.Post("/api/teams/create", teamHandler.CreateTeam)
			r.Post("/api/teams/join", teamHandler.JoinTeam)
			r.Post("/api/teams/leave", teamHandler.LeaveTeam)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireTeamSession)

			r.Patch("/api/teams/{teamId}", teamHandler.UpdateTeam)
			r.Post("/api/teams/{teamId}/deactivate", teamHandler.DeactivateTeam)

			r.Get("/api/teams/{teamId}/decks", teamDeckHandler.ListDecks)
			r.Post("/api/teams/{teamId}/decks", teamDeckHandler.CreateDeck)
			r.Get("/api/teams/{teamId}/decks/{deckId}", teamDeckHandler.GetDeck)
			r.Patch("/api/teams/{teamId}/decks/{deckId}", teamDeckHandler.UpdateDeck)
			r.Delete("/api/teams/{teamId}/decks/{deckId}", teamDeckHandler.DeleteDeck)
			r.Get("/api/teams/{teamId}/decks/{deckId}/cards", teamDeckHandler.ListCards)
			r.Post("/api/teams/{teamId}/decks/{deckId}/cards", teamDeckHandler.CreateCard)
			r.Get("/api/teams/{teamId}/decks/{deckId}/cards/search", teamDeckHandler.SearchCards)
			r.Patch("/api/teams/{teamId}/cards/{cardId}", teamDeckHandler.UpdateCard)
			r.Delete("/api/teams/{teamId}/cards/{cardId}", teamDeckHandler.DeleteCard)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Verifier))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 個人デッキ
		r.Route("/api/decks", func(r chi.Router) {
			r.Get("/", deckHandler.ListDecks)
			r.Post("/", deckHandler.CreateDeck)
			r.Get("/card-counts", deckHandler.CardCounts)

			r.Route("/{deckId}", func(r chi.Router) {
				r.Get("/", deckHandler.GetDeck)
				r.Patch("/", deckHandler.UpdateDeck)
				r.Delete("/", deckHandler.DeleteDeck)
				r.Get("/cards", deckHandler.ListCards)
				r.Post("/cards", deckHandler.CreateCard)
				r.Get("/cards/search", deckHandler.SearchCards)
			})
		})

		r.Route("/api/cards/{cardId}", func(r chi.Router) {
			r.Get("/", deckHandler.GetCard)
			r.Patch("/", deckHandler.UpdateCard)
			r.Delete("/", deckHandler.DeleteCard)
		})

		r.Post("/api/seed", deckHandler.Seed)

		// 公開チームレジストリ
		r.Get("/api/public-teams", teamHandler.ListPublicTeams)
		r.Get("/api/public-teams/{teamId}", teamHandler.GetPublicTeam)

		// 学習キュー
		r.Route("/api/study", func(r chi.Router) {
			r.Post("/", studyHandler.Start)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", studyHandler.Get)
				r.Delete("/", studyHandler.End)
				r.Post("/next", studyHandler.Next)
				r.Post("/grade", studyHandler.Grade)
				r.Post("/reset", studyHandler.Reset)
			})
		})

		// プラン
		r.Get("/api/plans/me", planHandler.Me)
		r.Post("/api/plans/checkout", planHandler.Checkout)
	})

	return r
}

// csrfWhenAuthenticated はセッションのあるリクエストにのみCSRF検証を適用する。
func csrfWhenAuthenticated(csrf func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := csrf(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if middleware.SessionFromContext(r.Context()) == nil {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}
