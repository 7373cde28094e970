package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	module "github.com/campusmind/twofactor/modules/twofactor"
	"github.com/campusmind/twofactor/pkg/audit"
	"github.com/campusmind/twofactor/pkg/clientip"
	"github.com/campusmind/twofactor/pkg/config"
	"github.com/campusmind/twofactor/pkg/environment"
	"github.com/campusmind/twofactor/pkg/httpserver"
	"github.com/campusmind/twofactor/pkg/logger"
	"github.com/campusmind/twofactor/pkg/metrics"
	"github.com/campusmind/twofactor/pkg/qrcode"
	"github.com/campusmind/twofactor/pkg/ratelimiter"
	"github.com/campusmind/twofactor/pkg/requestid"
	"github.com/campusmind/twofactor/pkg/secrets"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

type appConfig struct {
	Env           string        `env:"APP_ENV" envDefault:"development"`
	Name          string        `env:"APP_NAME" envDefault:"campusmind-2fa"`
	Store         string        `env:"TWOFACTOR_STORE" envDefault:"memory"`
	HealthTimeout time.Duration `env:"HEALTH_TIMEOUT" envDefault:"2s"`
	AuditSink     string        `env:"AUDIT_SINK" envDefault:"log"`
	// CIDRs or addresses whose forwarding headers are trusted.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

func run(ctx context.Context) error {
	var appCfg appConfig
	if err := config.Load(&appCfg); err != nil {
		return err
	}
	var tfCfg twofactor.Config
	if err := config.Load(&tfCfg); err != nil {
		return err
	}
	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}

	env := environment.Parse(appCfg.Env)
	log := logger.New(
		logger.WithEnvironment(env, appCfg.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	codec, err := newCodec(tfCfg, env, appCfg.Store, log)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, appCfg.Store, codec, log)
	if err != nil {
		return err
	}
	defer backend.close()

	auditWriter, err := backend.openAudit(appCfg.AuditSink, log)
	if err != nil {
		return err
	}
	proxies, err := clientip.ParsePrefixes(appCfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	router, err := newRouter(routerDeps{
		env:       env,
		log:       log,
		cfg:       tfCfg,
		backend:   backend,
		registry:  newRegistry(),
		healthTTL: appCfg.HealthTimeout,
		audit:     auditWriter,
		clientIP:  clientip.New(proxies...),
	})
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "starting two-factor service",
		logger.Store(appCfg.Store),
		slog.Bool("sealed", codec.Sealed()),
		slog.Bool("attempt_limiter", tfCfg.LimitAttempts()),
	)
	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, router)
}

// newCodec seals records when a key is configured. Durable stores without a
// key are refused in production.
func newCodec(cfg twofactor.Config, env environment.Environment, store string, log *slog.Logger) (*twofactor.Codec, error) {
	if cfg.EncryptionKey == "" {
		if store != storeMemory && env.IsProduction() {
			return nil, errors.Join(twofactor.ErrInvalidConfig, errors.New("TWOFACTOR_ENCRYPTION_KEY is required for durable stores in production"))
		}
		if store != storeMemory {
			log.Warn("secret records are stored unencrypted; set TWOFACTOR_ENCRYPTION_KEY", logger.Store(store))
		}
		return twofactor.NewCodec(nil), nil
	}

	sealer, err := secrets.NewSealerFromString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("TWOFACTOR_ENCRYPTION_KEY: %w", err)
	}
	return twofactor.NewCodec(sealer), nil
}

// newRegistry returns a registry that already exports Go runtime and
// process metrics.
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

type routerDeps struct {
	env       environment.Environment
	log       *slog.Logger
	cfg       twofactor.Config
	backend   *backend
	registry  *prometheus.Registry
	healthTTL time.Duration
	audit     audit.Writer // nil disables auditing
	clientIP  *clientip.Resolver
}

func newRouter(d routerDeps) (http.Handler, error) {
	tfMetrics, err := metrics.NewTwoFactor(metrics.Options{Registerer: d.registry})
	if err != nil {
		return nil, err
	}
	httpMetrics, err := metrics.NewHTTP(metrics.Options{Registerer: d.registry})
	if err != nil {
		return nil, err
	}

	opts := append(d.cfg.Options(),
		twofactor.WithLogger(d.log.With(logger.Component("twofactor"))),
		twofactor.WithMetrics(tfMetrics),
		twofactor.WithQRRenderer(qrcode.NewRenderer(d.cfg.QRSize)),
	)
	if d.cfg.LimitAttempts() {
		limiter, err := ratelimiter.NewBucket(d.backend.attempts, d.cfg.AttemptLimits())
		if err != nil {
			return nil, err
		}
		opts = append(opts, twofactor.WithAttemptLimiter(limiter))
	}

	engine, err := twofactor.New(d.backend.secrets, opts...)
	if err != nil {
		return nil, err
	}

	svcOpts := []module.Option{module.WithLogger(d.log)}
	if d.audit != nil {
		svcOpts = append(svcOpts, module.WithAuditor(newRecorder(d.audit)))
	}
	if d.clientIP == nil {
		d.clientIP = clientip.New()
	}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		d.clientIP.Middleware,
		environment.Middleware(d.env),
		httpMetrics.Middleware,
		middleware.Recoverer,
	)

	r.Get("/health/live", httpserver.Liveness())
	r.Get("/health/ready", httpserver.Readiness(d.log, d.healthTTL, d.backend.checks))
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	r.Mount("/", module.Router(module.NewService(engine, svcOpts...)))

	return r, nil
}

func newRecorder(w audit.Writer) *audit.Recorder {
	return audit.NewRecorder(w,
		audit.WithRequestIDExtractor(nonEmpty(requestid.FromContext)),
		audit.WithIPExtractor(nonEmpty(clientip.FromContext)),
	)
}

func nonEmpty(get func(context.Context) string) audit.ContextExtractor {
	return func(ctx context.Context) (string, bool) {
		v := get(ctx)
		return v, v != ""
	}
}
