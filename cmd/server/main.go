package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/pasaeventos-api/internal/apidocs"
	"github.com/keithlinneman/pasaeventos-api/internal/apperr"
	"github.com/keithlinneman/pasaeventos-api/internal/cfg"
	"github.com/keithlinneman/pasaeventos-api/internal/deps"
	"github.com/keithlinneman/pasaeventos-api/internal/health"
	"github.com/keithlinneman/pasaeventos-api/internal/healthhttp"
	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
	"github.com/keithlinneman/pasaeventos-api/internal/httpserver"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/metrics"
	"github.com/keithlinneman/pasaeventos-api/internal/opshttp"
	"github.com/keithlinneman/pasaeventos-api/internal/otelx"
	"github.com/keithlinneman/pasaeventos-api/internal/probe"
	"github.com/keithlinneman/pasaeventos-api/internal/prof"
	"github.com/keithlinneman/pasaeventos-api/internal/ratelimit"
	"github.com/keithlinneman/pasaeventos-api/internal/secrets"
	v "github.com/keithlinneman/pasaeventos-api/internal/version"
)

const envPrefix = "PASA_"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.App, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix PASA_; flags win
	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// validate config
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	mode := conf.Mode()

	// Setup logging
	lg, err := newLogger(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"env", mode.String(),
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"cors_origins", conf.Origins(),
		"rate_limit", conf.RateLimit,
		"rate_window", conf.RateWindow,
		"mysql_host", conf.MySQLHost,
		"redis_host", conf.RedisHost,
		"storage_provider", conf.StorageProvider,
		"mail_host", conf.MailHost,
	)

	// resolve ssm: references in secret settings before anything connects
	if refs := conf.Secrets(); secrets.Pending(refs) {
		resolver, err := secrets.NewSSMResolver(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to create SSM client for secret resolution")
			os.Exit(1)
		}
		if err := resolver.Resolve(ctx, refs); err != nil {
			L.Error(ctx, err, "failed to resolve secrets from SSM")
			os.Exit(1)
		}
		L.Info(ctx, "resolved secrets from SSM")
	}

	// Setup metrics
	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Environment:   mode.String(),
		Version:       vi.Version,
		Tags: map[string]string{
			"component": "server",
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:     conf.EnableTracing,
		Endpoint:    conf.OTLPEndpoint,
		Insecure:    true,
		Sample:      conf.TraceSample,
		Service:     v.AppName,
		Component:   "server",
		Version:     vi.Version,
		Environment: mode.String(),
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// dependency clients, connected lazily so a dependency that is down at
	// boot shows up in /health instead of stopping startup
	clients, err := deps.Open(ctx, depsConfig(conf))
	if err != nil {
		L.Error(ctx, err, "failed to create dependency clients")
		os.Exit(1)
	}
	defer func() {
		if err := clients.Close(); err != nil {
			L.Warn(context.Background(), "closing dependency clients", "err", err)
		}
	}()

	// health aggregator over every dependency, feeding probe metrics
	agg := health.NewAggregator(health.WithObserver(func(name string, res probe.Result, took time.Duration) {
		m.ObserveProbe(name, res.OK, took)
	}))
	for name, p := range clients.Probes() {
		agg.Register(name, probe.WithTimeout(p, conf.ProbeTimeout))
	}
	L.Info(ctx, "registered health probes", "dependencies", agg.Names())

	// single sink for every error response on the public listener
	responder := &apperr.Responder{
		Mode:   mode,
		Logger: L,
		OnError: func(rec apperr.Record) {
			m.IncErrorResponse(rec.Kind.String(), rec.Status)
		},
	}

	// Setup rate limiter middleware
	limiter := ratelimit.New(ctx,
		ratelimit.WithWindow(conf.RateLimit, conf.RateWindow),
		ratelimit.WithErrorWriter(responder.Respond),
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	healthAPI := healthhttp.NewAPI(agg)
	healthAPI.OnDegraded = func([]string) { m.IncHealthDegraded() }

	routes := []httpserver.RouteRegistrar{healthAPI}
	if !mode.IsProduction() {
		docs, err := apidocs.New()
		if err != nil {
			L.Error(ctx, err, "failed to load API docs")
			os.Exit(1)
		}
		routes = append(routes, docs)
	}

	origins := conf.Origins()
	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:    L,
		Port:      conf.HTTPPort,
		Mode:      mode,
		Responder: responder,
		CORS: &httpmw.CORSOptions{
			AllowedOrigins: origins,
			AllowNoOrigin:  !mode.IsProduction(),
			MaxAge:         600,
		},
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		MaxBodyBytes: conf.MaxBodyBytes,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		HSTS:         mode.IsProduction(),
		Routes:       routes,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// ready while not draining and the database is reachable; the rest of
	// the dependencies degrade /health without pulling the instance
	readiness := health.All(
		gate.Check(),
		agg.Require(deps.NameMySQL),
	)

	// start admin/ops listener to serve metrics, health checks and pprof
	// we reject connections from public ips to prevent accidental exposure
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Debug(ctx, "systemd readiness notification skipped", "reason", err.Error())
	}

	// wait for ctrl+c / sigterm
	<-ctx.Done()
	stop()

	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	// fail readiness so the load balancer stops sending new requests
	gate.Set("draining")
	L.Info(bg, "shutdown gate closed, draining", "drain_delay", conf.DrainDelay)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainDelay):
		L.Info(bg, "drain period complete")
	case <-forceCh:
		L.Warn(bg, "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(bg, conf.ShutdownTimeout)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "app http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()

	L.Info(bg, "shutdown complete")
}

func newLogger(conf cfg.App) (log.Logger, error) {
	mode := conf.Mode()

	// unset level: debug while developing, info once deployed
	lvl := slog.LevelDebug
	if mode.IsProduction() {
		lvl = slog.LevelInfo
	}
	if conf.LogLevel != "" {
		var err error
		if lvl, err = log.ParseLevel(conf.LogLevel); err != nil {
			return nil, err
		}
	}
	stackLvl := slog.LevelError
	if conf.StacktraceLevel != "" {
		var err error
		if stackLvl, err = log.ParseLevel(conf.StacktraceLevel); err != nil {
			return nil, err
		}
	}
	jsonFormat, err := log.ParseFormat(conf.LogFormat, mode.IsProduction())
	if err != nil {
		return nil, err
	}

	return log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		Environment:       mode.String(),
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        jsonFormat,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
}

func depsConfig(conf cfg.App) deps.Config {
	sc := deps.StorageConfig{
		Provider: conf.StorageProvider,
		Region:   conf.S3Region,
		Bucket:   conf.S3Bucket,
	}
	switch conf.StorageProvider {
	case cfg.StorageMinio:
		sc.Endpoint = conf.MinioEndpoint
		sc.Port = conf.MinioPort
		sc.UseSSL = conf.MinioUseSSL
		sc.AccessKey = conf.MinioAccessKey
		sc.SecretKey = conf.MinioSecretKey
	case cfg.StorageS3:
		sc.AccessKey = conf.S3Key
		sc.SecretKey = conf.S3Secret
	}

	return deps.Config{
		MySQL: deps.MySQLConfig{
			Host:     conf.MySQLHost,
			Port:     conf.MySQLPort,
			User:     conf.MySQLUser,
			Password: conf.MySQLPassword,
			Database: conf.MySQLDatabase,
		},
		Redis: deps.RedisConfig{
			Host:     conf.RedisHost,
			Port:     conf.RedisPort,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		},
		Storage: sc,
		Mail: deps.MailConfig{
			Host:        conf.MailHost,
			Port:        conf.MailPort,
			User:        conf.MailUser,
			Pass:        conf.MailPass,
			ImplicitTLS: conf.MailImplicitTLS(),
		},
	}
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
