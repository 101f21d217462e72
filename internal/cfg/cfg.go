package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/pasaeventos-api/internal/appenv"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
)

const (
	StorageMinio = "minio"
	StorageS3    = "s3"
)

type App struct {
	Env               string
	LogFormat         string
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort        int
	AdminPort       int
	DrainDelay      time.Duration
	ShutdownTimeout time.Duration

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	CORSOrigins      string
	RateLimit        int
	RateWindow       time.Duration
	TrustedProxyHops int
	MaxBodyBytes     int64
	ProbeTimeout     time.Duration

	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	StorageProvider string
	MinioEndpoint   string
	MinioPort       int
	MinioUseSSL     bool
	MinioAccessKey  string
	MinioSecretKey  string
	S3Region        string
	S3Key           string
	S3Secret        string
	S3Bucket        string

	MailHost   string
	MailPort   int
	MailUser   string
	MailPass   string
	MailSecure bool
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.Env, "env", "development", "development|test|production")
	fs.StringVar(&c.LogFormat, "log-format", "auto", "auto|json|text (auto = json in production)")
	fs.StringVar(&c.LogLevel, "log-level", "", "debug|info|warn|error (empty = info in production, debug otherwise)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "port", 8080, "API listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9090, "admin listen TCP port (1..65535)")
	fs.DurationVar(&c.DrainDelay, "drain-delay", 15*time.Second, "time to fail readiness before closing listeners")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown deadline")

	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")

	fs.StringVar(&c.CORSOrigins, "cors-origins", "", "comma separated allowed origins, e.g. http://localhost:4200,https://example.com")
	fs.IntVar(&c.RateLimit, "rate-limit", 60, "requests allowed per client IP per rate-window")
	fs.DurationVar(&c.RateWindow, "rate-window", time.Minute, "rate limit window")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "reverse proxies in front of the API whose X-Forwarded-For is trusted")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 1<<20, "request body limit in bytes (0 = unlimited)")
	fs.DurationVar(&c.ProbeTimeout, "probe-timeout", 0, "per-dependency health probe deadline (0 = none)")

	fs.StringVar(&c.MySQLHost, "mysql-host", "", "MySQL host")
	fs.IntVar(&c.MySQLPort, "mysql-port", 3306, "MySQL port")
	fs.StringVar(&c.MySQLUser, "mysql-user", "", "MySQL user")
	fs.StringVar(&c.MySQLPassword, "mysql-password", "", "MySQL password (ssm:<name> resolves from SSM)")
	fs.StringVar(&c.MySQLDatabase, "mysql-database", "", "MySQL database")

	fs.StringVar(&c.RedisHost, "redis-host", "", "Redis host")
	fs.IntVar(&c.RedisPort, "redis-port", 6379, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password (ssm:<name> resolves from SSM)")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number")

	fs.StringVar(&c.StorageProvider, "filemanager-provider", StorageMinio, "object storage provider: minio|s3")
	fs.StringVar(&c.MinioEndpoint, "minio-endpoint", "", "MinIO host (required for the minio provider)")
	fs.IntVar(&c.MinioPort, "minio-port", 9000, "MinIO port")
	fs.BoolVar(&c.MinioUseSSL, "minio-use-ssl", false, "Use https for MinIO")
	fs.StringVar(&c.MinioAccessKey, "minio-root-user", "", "MinIO access key")
	fs.StringVar(&c.MinioSecretKey, "minio-root-password", "", "MinIO secret key (ssm:<name> resolves from SSM)")
	fs.StringVar(&c.S3Region, "s3-region", "", "S3 region")
	fs.StringVar(&c.S3Key, "s3-key", "", "S3 access key id (empty = default credential chain)")
	fs.StringVar(&c.S3Secret, "s3-secret", "", "S3 secret access key (ssm:<name> resolves from SSM)")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "S3 bucket probed by the health check (empty = list buckets)")

	fs.StringVar(&c.MailHost, "mail-host", "", "SMTP host")
	fs.IntVar(&c.MailPort, "mail-port", 1025, "SMTP port")
	fs.StringVar(&c.MailUser, "mail-user", "", "SMTP user (empty = no auth)")
	fs.StringVar(&c.MailPass, "mail-pass", "", "SMTP password (ssm:<name> resolves from SSM)")
	fs.BoolVar(&c.MailSecure, "mail-secure", false, "Use implicit TLS (always on for port 465)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value overrides env %s", f.Name, key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s: %v", f.Name, key, err)
			}
		}
	})
}

// EnvKey maps a flag name to its environment variable.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// Mode parses Env; Validate has already rejected bad values.
func (c App) Mode() appenv.Mode {
	m, err := appenv.Parse(c.Env)
	if err != nil {
		return appenv.Development
	}
	return m
}

// Origins splits CORSOrigins, dropping blanks.
func (c App) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MailImplicitTLS reports whether SMTP should start in TLS rather than
// upgrading with STARTTLS.
func (c App) MailImplicitTLS() bool {
	return c.MailSecure || c.MailPort == 465
}

// Secrets returns the fields that may hold an ssm: reference, keyed by flag
// name so resolution errors point at the right setting.
func (c *App) Secrets() map[string]*string {
	return map[string]*string{
		"mysql-password":      &c.MySQLPassword,
		"redis-password":      &c.RedisPassword,
		"minio-root-password": &c.MinioSecretKey,
		"s3-secret":           &c.S3Secret,
		"mail-pass":           &c.MailPass,
	}
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	mode, err := appenv.Parse(c.Env)
	if err != nil {
		add("invalid ENV %q: %w", c.Env, err)
	}

	// Ports
	for name, p := range map[string]int{
		"PORT":       c.HTTPPort,
		"ADMIN_PORT": c.AdminPort,
		"MYSQL_PORT": c.MySQLPort,
		"REDIS_PORT": c.RedisPort,
		"MINIO_PORT": c.MinioPort,
		"MAIL_PORT":  c.MailPort,
	} {
		if p < 1 || p > 65535 {
			add("invalid %s %d (must be 1..65535)", name, p)
		}
	}
	if c.AdminPort == c.HTTPPort {
		add("ADMIN_PORT and PORT must differ (both %d)", c.HTTPPort)
	}
	if c.DrainDelay < 0 || c.ShutdownTimeout <= 0 {
		add("DRAIN_DELAY must be >= 0 and SHUTDOWN_TIMEOUT > 0")
	}

	// Logging
	if _, err := log.ParseFormat(c.LogFormat, mode.IsProduction()); err != nil {
		add("invalid LOG_FORMAT %q: %w", c.LogFormat, err)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			add("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
		}
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			add("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err)
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		add("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		add("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			add("PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			add("PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			add("OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			add("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}

	// HTTP surface
	if len(c.Origins()) == 0 {
		add("CORS_ORIGINS is required")
	}
	if c.RateLimit < 1 || c.RateWindow <= 0 {
		add("RATE_LIMIT must be >= 1 and RATE_WINDOW > 0 (got %d per %s)", c.RateLimit, c.RateWindow)
	}
	if c.TrustedProxyHops < 0 {
		add("TRUSTED_PROXY_HOPS must be >= 0 (got %d)", c.TrustedProxyHops)
	}
	if c.MaxBodyBytes < 0 {
		add("MAX_BODY_BYTES must be >= 0 (got %d)", c.MaxBodyBytes)
	}
	if c.ProbeTimeout < 0 {
		add("PROBE_TIMEOUT must be >= 0 (got %s)", c.ProbeTimeout)
	}

	// Dependencies
	required := []struct{ name, val string }{
		{"MYSQL_HOST", c.MySQLHost},
		{"MYSQL_USER", c.MySQLUser},
		{"MYSQL_PASSWORD", c.MySQLPassword},
		{"MYSQL_DATABASE", c.MySQLDatabase},
		{"REDIS_HOST", c.RedisHost},
		{"MAIL_HOST", c.MailHost},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			add("%s is required", r.name)
		}
	}
	switch c.StorageProvider {
	case StorageMinio:
		if c.MinioEndpoint == "" {
			add("MINIO_ENDPOINT is required when FILEMANAGER_PROVIDER=minio")
		}
	case StorageS3:
		if c.S3Region == "" {
			add("S3_REGION is required when FILEMANAGER_PROVIDER=s3")
		}
		if (c.S3Key == "") != (c.S3Secret == "") {
			add("S3_KEY and S3_SECRET must be set together")
		}
	default:
		add("invalid FILEMANAGER_PROVIDER %q (must be minio|s3)", c.StorageProvider)
	}

	return errors.Join(errs...)
}
