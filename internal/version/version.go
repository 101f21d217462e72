package version

import "runtime/debug"

// AppName identifies this service in logs, metrics and traces.
const AppName = "pasaeventos-api"

// set via -ldflags at build time
var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	App        string `json:"app"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

// Get merges ldflags values with the module build info; ldflags win for
// commit and build date, build info fills the rest.
func Get() *Info {
	out := &Info{
		App:        AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && s.Value != "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.BuildDate == "" && s.Value != "" {
				out.BuildDate = s.Value
			}
			if out.CommitDate == "" {
				out.CommitDate = s.Value
			}
		case "vcs.modified":
			if dirty, ok := parseBool(s.Value); ok {
				out.VCSDirty = &dirty
			}
		}
	}
	return out
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
