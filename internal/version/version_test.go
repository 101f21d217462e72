package version

import (
	"runtime"
	"testing"
)

func TestVCSDirtyTriState(t *testing.T) {
	t.Cleanup(func() { VCSDirty = nil })

	VCSDirty = nil
	if info := Get(); info.VCSDirty != nil {
		t.Fatalf("VCSDirty = %v, want nil", *info.VCSDirty)
	}

	trueVal := true
	VCSDirty = &trueVal
	if info := Get(); info.VCSDirty == nil || !*info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	VCSDirty = &falseVal
	if info := Get(); info.VCSDirty == nil || *info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestGet_Defaults(t *testing.T) {
	info := Get()
	if info.App != AppName {
		t.Errorf("App = %q, want %q", info.App, AppName)
	}
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestGet_LdflagsCommitWins(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = "abc123"
	if got := Get().Commit; got != "abc123" {
		t.Fatalf("Commit = %q, want abc123", got)
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string][2]bool{
		"true":  {true, true},
		"false": {false, true},
		"":      {false, false},
		"yes":   {false, false},
	} {
		v, ok := parseBool(in)
		if v != want[0] || ok != want[1] {
			t.Errorf("parseBool(%q) = %v, %v", in, v, ok)
		}
	}
}
