package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blossom/internal/auth"
	"github.com/hitoshi/blossom/internal/config"
	"github.com/hitoshi/blossom/internal/database"
	"github.com/hitoshi/blossom/internal/deck"
	"github.com/hitoshi/blossom/internal/handler"
	"github.com/hitoshi/blossom/internal/identity"
	"github.com/hitoshi/blossom/internal/logger"
	"github.com/hitoshi/blossom/internal/metrics"
	"github.com/hitoshi/blossom/internal/middleware"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/plan"
	"github.com/hitoshi/blossom/internal/repository"
	"github.com/hitoshi/blossom/internal/security"
	"github.com/hitoshi/blossom/internal/seed"
	"github.com/hitoshi/blossom/internal/study"
	"github.com/hitoshi/blossom/internal/team"
	"github.com/hitoshi/blossom/internal/teamdeck"
	"github.com/hitoshi/blossom/internal/worker/cleanup"
)

// devTokenValidity は token サブコマンドで発行するトークンの有効期間。
const devTokenValidity = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .env があれば読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg, commandArg(args))
	case CommandToken:
		return runToken(cfg, commandArg(args), os.Stdout)
	default:
		return runServe(cfg)
	}
}

// stores はリポジトリ一式と後始末をまとめたもの。
type stores struct {
	decks       repository.DeckRepository
	cards       repository.CardRepository
	publicTeams repository.PublicTeamRepository
	health      repository.HealthChecker
	close       func()
}

// openStores はDATABASE_URLに応じてPostgreSQLまたはインメモリのストアを開く。
// DATABASE_URL未設定でも起動は継続し、データは再起動で失われる。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.UsesMemoryStore() {
		slog.Error("DATABASE_URL is not set; falling back to in-memory store (data will not persist)")
		mem := repository.NewMemoryStore()
		return &stores{
			decks:       mem.Decks(),
			cards:       mem.Cards(),
			publicTeams: mem.PublicTeams(),
			health:      mem,
			close:       func() {},
		}, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &stores{
		decks:       repository.NewPostgresDeckRepo(db),
		cards:       repository.NewPostgresCardRepo(db),
		publicTeams: repository.NewPostgresPublicTeamRepo(db),
		health:      db,
		close:       func() { db.Close() },
	}, nil
}

// newIdentityClient はIdPクライアントを生成する。
func newIdentityClient(cfg *config.Config) *identity.Client {
	return identity.NewClient(
		&http.Client{Timeout: cfg.IdentityTimeout},
		identity.Config{
			BaseURL:   cfg.IdentityAPIURL,
			ProjectID: cfg.IdentityProjectID,
			SecretKey: cfg.IdentitySecretKey,
		},
		slog.Default(),
	)
}

// rateLimiterConfig はreq/min単位の設定をreq/secのレート制限設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rl.GeneralBurst = cfg.RateLimitGeneral
	rl.TeamMutationRate = rate.Limit(float64(cfg.RateLimitTeamMutation) / 60.0)
	rl.TeamMutationBurst = cfg.RateLimitTeamMutation
	return rl
}

// newMetricsRegistry はGo/プロセスのコレクタを含むレジストリとアプリのCollectorを生成する。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.NewCollector(reg)
}

// newWorkerMetricsServer はworkerの/metricsだけを公開するHTTPサーバーを生成する。
func newWorkerMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 2. メトリクス
	reg, collector := newMetricsRegistry()

	// 3. ドメインサービスの初期化
	log := slog.Default()
	sanitizer := security.NewTextSanitizer()
	idp := newIdentityClient(cfg)

	deckService := deck.NewService(st.decks, st.cards, sanitizer, collector, log)
	teamDeckService := teamdeck.NewService(st.decks, st.cards, sanitizer, collector, log)
	teamService := team.NewService(idp, st.publicTeams, sanitizer, collector, log)
	gate := team.NewGate(idp, st.publicTeams, teamDeckService)
	planService := plan.NewService(idp, cfg.CheckoutOfferID, log)

	seeder, err := seed.NewSeeder(deckService, log)
	if err != nil {
		return fmt.Errorf("failed to load demo deck: %w", err)
	}

	studyManager := study.NewManager(cfg.StudySessionTTL, collector, log)
	defer studyManager.Stop()

	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		Verifier:          auth.NewTokenVerifier(cfg.AccessTokenSecret),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      log,
		Metrics:     collector,
		Gatherer:    reg,
		Health:      st.health,

		DeckService: deckService,
		Seeder:      seeder,

		TeamDeckService: teamDeckService,
		TeamService:     teamService,
		Gate:            gate,

		StudyManager: studyManager,
		PlanService:  planService,
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ストアを開き、孤立カードのクリーンアップジョブを定期実行する。
// 削除件数などのメトリクスはWORKER_METRICS_PORTの/metricsで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg, collector := newMetricsRegistry()
	cleanupJob := cleanup.NewCleanupJob(st.cards, collector, slog.Default())
	cleanupJob.Interval = cfg.CleanupInterval

	metricsServer := newWorkerMetricsServer(cfg.WorkerMetricsPort, reg)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.UsesMemoryStore() {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runSeed は指定ユーザーにデモデッキを投入する。デッキを既に持つ場合は何もしない。
func runSeed(cfg *config.Config, userID string) error {
	if userID == "" {
		return errors.New("usage: seed <user-id>")
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	deckService := deck.NewService(st.decks, st.cards, security.NewTextSanitizer(), metrics.NopCollector{}, slog.Default())
	seeder, err := seed.NewSeeder(deckService, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load demo deck: %w", err)
	}

	d, err := seeder.Seed(ctx, &model.Session{UserID: userID})
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	if d == nil {
		slog.Info("user already has decks; seed skipped", slog.String("user_id", userID))
		return nil
	}

	slog.Info("seed completed",
		slog.String("user_id", userID),
		slog.String("deck_id", d.ID),
	)
	return nil
}

// runToken はローカル開発用のアクセストークンを発行してoutに書き出す。
func runToken(cfg *config.Config, userID string, out io.Writer) error {
	if userID == "" {
		return errors.New("usage: token <user-id>")
	}

	token, err := auth.NewTokenVerifier(cfg.AccessTokenSecret).Issue(userID, devTokenValidity)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
