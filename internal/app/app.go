// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-hyperstreak-guard/internal/bootstrap"
	"github.com/AccelByte/extend-hyperstreak-guard/internal/config"
	"github.com/AccelByte/extend-hyperstreak-guard/internal/server"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/audit"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/service"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/transport"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/validator"

	"github.com/AccelByte/accelbyte-go-sdk/services-api/pkg/factory"
	"github.com/AccelByte/accelbyte-go-sdk/services-api/pkg/service/iam"
	"github.com/AccelByte/accelbyte-go-sdk/services-api/pkg/service/social"
	sdkAuth "github.com/AccelByte/accelbyte-go-sdk/services-api/pkg/utils/auth"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	grpcServer        *server.GRPCServer
	httpServer        *server.HTTPServer
	redisClient       *redis.Client
	auditStore        *audit.SQLStore
	sweeper           *validator.Sweeper
	shutdownTelemetry func(context.Context) error

	// AccelByte SDK repositories, nil when the platform is not configured
	configRepo *sdkAuth.ConfigRepositoryImpl
	tokenRepo  *sdkAuth.TokenRepositoryImpl
}

// New creates and initializes a new application instance.
//
// ============================================================
// DEVELOPER: Application initialization order
// ============================================================
// Components are initialized in dependency order:
// 1. AccelByte SDK (only when client credentials are set)
// 2. Redis (progression records and change notifications)
// 3. Hyperstreak rules (YAML configuration)
// 4. External services (record store, audit history, activation sinks)
// 5. Invariant validator (attached to the record store)
// 6. Servers (gRPC, HTTP)
// 7. Telemetry (OpenTelemetry tracing)
// ============================================================
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	// ============================================================
	// Step 1: Initialize Client Auth using AccelByte SDK
	// ============================================================
	if cfg.PlatformEnabled() {
		if err := app.initAccelByteSDKAuth(); err != nil {
			return nil, fmt.Errorf("failed to init AccelByte SDK: %w", err)
		}
	} else {
		logrus.Info("AccelByte credentials not set, activation statistics disabled")
	}

	// ============================================================
	// Step 2: Initialize Redis
	// ============================================================
	if err := app.initRedis(ctx); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	// ============================================================
	// Step 3: Load hyperstreak rules
	// ============================================================
	rules, err := bootstrap.LoadRules(cfg.RulesPath)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to load rules from %s: %w", cfg.RulesPath, err)
	}

	// ============================================================
	// Step 4: Initialize external services
	// ============================================================
	store := record.NewRedisStore(app.redisClient, record.RedisStoreConfig{})
	notifier := record.NewRedisNotifier(app.redisClient)
	tracker := service.NewRedisActivationTracker(app.redisClient, service.RedisActivationTrackerConfig{})

	if cfg.AuditEnabled() {
		app.auditStore, err = audit.Open(cfg.AuditDBDriver, cfg.AuditDBDSN)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		logrus.Infof("flag history stored in %s database", cfg.AuditDBDriver)
	}

	activations := bootstrap.InitActivationSink(tracker, app.initStatisticService())

	// ============================================================
	// Step 5: Attach the invariant validator
	// ============================================================
	_, app.sweeper, err = bootstrap.InitValidator(store, notifier, app.auditStore, activations, bootstrap.ValidatorOptions{
		Rules:         rules,
		MaxRetries:    cfg.ValidatorMaxRetries,
		RetryInterval: cfg.ValidatorRetryInterval,
		SweepInterval: cfg.CorrectionSweepInterval,
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to init validator: %w", err)
	}

	// ============================================================
	// Step 6: Setup servers
	// ============================================================
	app.grpcServer = server.NewGRPCServer(cfg.GRPCPort, transport.NewService(store, notifier))
	if err := app.grpcServer.Setup(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to setup gRPC server: %w", err)
	}

	httpDeps := server.HTTPDependencies{
		Records:     store,
		Activations: tracker,
		Health:      record.NewHealthChecker(app.redisClient),
	}
	if app.auditStore != nil {
		httpDeps.Flags = app.auditStore
	}
	app.httpServer = server.NewHTTPServer(cfg.MetricsPort, httpDeps)
	if err := app.httpServer.Setup(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to setup HTTP server: %w", err)
	}

	// ============================================================
	// Step 7: Setup telemetry
	// ============================================================
	if cfg.OtelEnabled {
		shutdownTelemetry, err := server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, 0)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}
		app.shutdownTelemetry = shutdownTelemetry
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

// initAccelByteSDKAuth initializes the AccelByte SDK auth by performing client login.
//
// ============================================================
// DEVELOPER: AccelByte Client Auth configuration
// ============================================================
// The Client Auth is configured via environment variables:
// - AB_BASE_URL: AccelByte platform base URL
// - AB_CLIENT_ID: OAuth2 client ID
// - AB_CLIENT_SECRET: OAuth2 client secret
// - AB_NAMESPACE: Game namespace
//
// The SDK uses automatic token refresh (RefreshRate: 0.8 = 80% of TTL).
//
// IMPORTANT: The configRepo and tokenRepo are stored in the App struct
// and must be reused by all AccelByte services to share authentication.
// ============================================================
func (a *App) initAccelByteSDKAuth() error {
	a.configRepo = sdkAuth.DefaultConfigRepositoryImpl()
	a.tokenRepo = sdkAuth.DefaultTokenRepositoryImpl()
	refreshRepo := &sdkAuth.RefreshTokenImpl{AutoRefresh: true, RefreshRate: 0.8}

	oauthService := iam.OAuth20Service{
		Client:                 factory.NewIamClient(a.configRepo),
		ConfigRepository:       a.configRepo,
		TokenRepository:        a.tokenRepo,
		RefreshTokenRepository: refreshRepo,
	}

	clientID := a.configRepo.GetClientId()
	clientSecret := a.configRepo.GetClientSecret()

	if err := oauthService.LoginClient(&clientID, &clientSecret); err != nil {
		return fmt.Errorf("unable to login using clientId and clientSecret: %w", err)
	}

	logrus.Info("AccelByte SDK initialized and authenticated")
	return nil
}

// initRedis connects to Redis, retrying with backoff until it answers PING.
func (a *App) initRedis(ctx context.Context) error {
	client, err := record.Connect(ctx, record.ConnectOptions{
		Addr:         a.cfg.RedisHost + ":" + a.cfg.RedisPort,
		Password:     a.cfg.RedisPassword,
		MaxRetries:   a.cfg.RedisMaxRetries,
		RetryDelayMs: a.cfg.RedisRetryDelayMs,
	})
	if err != nil {
		return err
	}

	a.redisClient = client
	return nil
}

// initStatisticService initializes the statistic service client, or returns
// nil when the platform is not configured.
//
// IMPORTANT: Reuses a.configRepo and a.tokenRepo to share the authenticated
// session from initAccelByteSDKAuth(). Do NOT create new repository instances.
func (a *App) initStatisticService() *service.StatisticService {
	if a.configRepo == nil {
		return nil
	}

	statisticService := &social.UserStatisticService{
		Client:           factory.NewSocialClient(a.configRepo),
		ConfigRepository: a.configRepo,
		TokenRepository:  a.tokenRepo,
	}

	return service.NewStatisticService(statisticService,
		service.StatisticServiceConfig{
			Namespace: a.cfg.ABNamespace,
			StatCode:  a.cfg.ActivationStatCode,
		})
}

// cleanup releases connections opened before a failed initialization step.
func (a *App) cleanup() {
	if a.auditStore != nil {
		_ = a.auditStore.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
}
