package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redis/go-redis/v9"
	"github.com/sitetrack/sitetrack-api/config"
	redisadapter "github.com/sitetrack/sitetrack-api/internal/adapters/redis"
	"github.com/sitetrack/sitetrack-api/internal/data"
	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/domain/model"
	httpx "github.com/sitetrack/sitetrack-api/internal/http"
	"github.com/sitetrack/sitetrack-api/internal/ports"
	"github.com/sitetrack/sitetrack-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Provider    ports.IdentityProvider
	Sessions    *redisadapter.SessionStore
	Profiles    *data.ProfileRepo
	Cleaner     *service.SessionCleaner
	Roles       *service.RoleResolver
	Reconciler  *service.Reconciler
	Recovery    *service.RecoveryGate
	Passwords   *service.PasswordUpdateFlow
	Provisioner *service.ProfileProvisioner
	Audit       *service.WebhookAuditSink
	Guard       *httpx.Guard
	Handlers    *httpx.AuthHandlers
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// logNavigator records the reconciler's navigation decisions in the log. The
// server exposes the chosen destination through the view state; clients pull
// it from there.
type logNavigator struct {
	logger *slog.Logger
}

func (n logNavigator) Navigate(ctx context.Context, route string) {
	n.logger.InfoContext(ctx, "navigation decided", "route", route)
}

// NewServices wires the full auth stack: identity provider, session stores,
// cleanup, role resolution, the event reconciler, and the HTTP surface.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	provider, err := BuildIdentityProvider(ProviderConfig{
		Auth:        cfg.Auth,
		EventBuffer: cfg.Reconciler.EventBuffer,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	sessions := redisadapter.NewSessionStoreWithPrefix(deps.RedisClient, "session:", cfg.Auth.SessionTTL)
	local := redisadapter.NewLocalStore(deps.RedisClient)
	cache := redisadapter.NewResponseCache(deps.RedisClient, cfg.Cache.ResponseTTL)
	profiles := data.NewProfileRepo(deps.DB)

	cleaner := service.NewSessionCleaner(service.SessionCleanerOptions{
		Provider:      provider,
		SessionRefs:   sessions,
		LocalStore:    local,
		ResponseCache: cache,
		Logger:        logger,
	})

	roles := service.NewRoleResolver(service.RoleResolverOptions{
		Profiles:    profiles,
		MaxAttempts: cfg.Roles.MaxAttempts,
		RetryDelay:  cfg.Roles.RetryDelay,
		Logger:      logger,
	})

	audit, err := buildAuditSink(cfg.Audit, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	landing := func(role domainauth.Role) string {
		return cfg.Auth.LandingForRole(string(role))
	}

	reconciler := service.NewReconciler(service.ReconcilerOptions{
		Provider:       provider,
		Cleaner:        cleaner,
		Roles:          roles,
		Profiles:       profiles,
		SessionRefs:    sessions,
		Navigator:      logNavigator{logger: logger},
		Audit:          auditPort(audit),
		LandingForRole: landing,
		SignInPath:     cfg.Auth.SignInPath,
		Logger:         logger,
	})

	recovery := service.NewRecoveryGate(service.RecoveryGateOptions{
		Param:   cfg.Auth.RecoveryParam,
		Cleaner: cleaner,
		Latch: func() bool {
			return reconciler.Snapshot().RecoveryMode
		},
		Logger: logger,
	})

	passwords := service.NewPasswordUpdateFlow(service.PasswordUpdateOptions{
		Provider:  provider,
		Profiles:  profiles,
		Cleaner:   cleaner,
		MinLength: cfg.Auth.PasswordMinLength,
		Logger:    logger,
	})

	provisioner := service.NewProfileProvisioner(service.ProfileProvisionerOptions{
		Profiles: profiles,
		Logger:   logger,
	})

	guard := httpx.NewGuard(httpx.GuardOptions{
		Sessions:       sessions,
		Provider:       provider,
		Roles:          roles,
		Cleaner:        cleaner,
		Audit:          auditPort(audit),
		SignInPath:     cfg.Auth.SignInPath,
		LandingForRole: landing,
		Logger:         logger,
	})

	handlers := &httpx.AuthHandlers{
		Provider:       provider,
		Sessions:       sessions,
		Roles:          roles,
		Profiles:       provisioner,
		Cleaner:        cleaner,
		Passwords:      passwords,
		Recovery:       recovery,
		Reconciler:     reconciler,
		LandingForRole: landing,
		SignInPath:     cfg.Auth.SignInPath,
		CookieDomain:   cfg.HTTP.CookieDomain,
		SessionTTL:     cfg.Auth.SessionTTL,
		Logger:         logger,
	}

	return ServiceContainer{
		Provider:    provider,
		Sessions:    sessions,
		Profiles:    profiles,
		Cleaner:     cleaner,
		Roles:       roles,
		Reconciler:  reconciler,
		Recovery:    recovery,
		Passwords:   passwords,
		Provisioner: provisioner,
		Audit:       audit,
		Guard:       guard,
		Handlers:    handlers,
	}, nil
}

func buildAuditSink(cfg config.AuditConfig, logger *slog.Logger) (*service.WebhookAuditSink, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	sink, err := service.NewWebhookAuditSink(service.WebhookAuditOptions{
		URL:        cfg.WebhookURL,
		Match:      cfg.Match,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create audit sink: %w", err)
	}
	return sink, nil
}

// auditPort converts the optional concrete sink into the port, keeping the
// interface nil when no sink is configured.
//
//nolint:ireturn // callers take the port, not the concrete sink.
func auditPort(sink *service.WebhookAuditSink) ports.AuditSink {
	if sink == nil {
		return nil
	}
	return sink
}

// SeedDevProfile writes a profile row for the mock auth identity so role
// resolution works out of the box in development.
func SeedDevProfile(ctx context.Context, profiles ports.ProfileStore, cfg config.DevAuthConfig, logger *slog.Logger) error {
	role := cfg.Role
	if _, err := profiles.Upsert(ctx, &model.UpsertProfileRequest{
		UserID: cfg.UserID,
		Role:   &role,
	}); err != nil {
		return fmt.Errorf("seed dev profile: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "dev profile seeded", "user_id", cfg.UserID, "role", cfg.Role)
	}
	return nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const shutdownWaitTimeout = 15 * time.Second

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. It blocks until a shutdown signal is received or a service
// fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, runCtx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeReconciler] {
		if err := cfg.Services.Reconciler.Start(runCtx); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
		logger.InfoContext(runCtx, "background service started", "service", "reconciler")
		group.Go(func() error {
			<-runCtx.Done()
			cfg.Services.Reconciler.Dispose()
			logger.Info("reconciler stopped")
			return nil
		})
	}

	if enabled[config.ServiceModeHTTP] {
		if err := cfg.Services.Guard.Start(runCtx); err != nil {
			return fmt.Errorf("start route guard: %w", err)
		}

		server := BuildHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})

		group.Go(func() error {
			logger.Info("starting HTTP server", "addr", server.Addr)
			if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				return fmt.Errorf("http server failed: %w", serveErr)
			}
			return nil
		})

		group.Go(func() error {
			<-runCtx.Done()
			defer cfg.Services.Guard.Close()
			return ShutdownHTTPServer(ShutdownConfig{
				Context: context.Background(),
				Server:  server,
				Logger:  logger,
			})
		})
	}

	waitErr := group.Wait()

	// Drain queued audit deliveries before exiting.
	if cfg.Services.Audit != nil {
		cfg.Services.Audit.Close()
	}

	return waitErr
}
