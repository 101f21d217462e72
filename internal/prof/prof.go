package prof

import (
	"context"
	"maps"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

type Options struct {
	Enabled              bool
	AppName              string
	ServerAddress        string
	BasicAuthUser        string
	BasicAuthPassword    string
	TenantID             string
	Environment          string
	Version              string
	Tags                 map[string]string
	ProfileMutexFraction int
	BlockProfileRate     int
}

// Start begins continuous profiling. The returned stop func is always
// non-nil and safe to call when profiling is off or failed to start.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return func() {}, nil
	}

	if opts.ServerAddress == "" {
		err := xerrors.Newf("invalid server address (%q)", opts.ServerAddress)
		L.Error(ctx, err, "pyroscope options")
		return func() {}, err
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}
	cfg := pyroscope.Config{
		ApplicationName:   opts.AppName,
		ServerAddress:     opts.ServerAddress,
		Tags:              tags(opts),
		TenantID:          opts.TenantID,
		BasicAuthUser:     opts.BasicAuthUser,
		BasicAuthPassword: opts.BasicAuthPassword,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	}

	profiler, err := pyroscope.Start(cfg)
	if err != nil {
		L.Error(ctx, xerrors.Wrap(err, "start pyroscope"), "pyroscope start failed",
			"server_address", opts.ServerAddress,
			"app_name", opts.AppName,
		)
		return func() {}, err
	}

	L.Info(ctx, "pyroscope started",
		"server_address", opts.ServerAddress,
		"app_name", opts.AppName,
	)

	return func() {
		_ = profiler.Stop()
		L.Info(context.Background(), "pyroscope stopped",
			"server_address", opts.ServerAddress,
			"app_name", opts.AppName,
		)
	}, nil
}

// tags merges env and version into the caller's tags; explicit tags win.
func tags(opts Options) map[string]string {
	out := make(map[string]string, len(opts.Tags)+2)
	if opts.Environment != "" {
		out["env"] = opts.Environment
	}
	if opts.Version != "" {
		out["version"] = opts.Version
	}
	maps.Copy(out, opts.Tags)
	return out
}
