package xerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// New / Newf

func TestNew_MessageAndStack(t *testing.T) {
	err := New("something broke")
	if err.Error() != "something broke" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if len(StackPCs(err)) == 0 {
		t.Fatal("New error should carry a stack")
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf("invalid port %d for %s", 99999, "server")
	want := "invalid port 99999 for server"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNew_StackContainsCaller(t *testing.T) {
	s := Stack(New("test"))
	if !strings.Contains(s, "TestNew_StackContainsCaller") {
		t.Fatalf("stack should contain calling function, got:\n%s", s)
	}
}

// WithStack / EnsureTrace

func TestWithStack_Nil(t *testing.T) {
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) should return nil")
	}
	if EnsureTrace(nil) != nil {
		t.Fatal("EnsureTrace(nil) should return nil")
	}
}

func TestWithStack_PreservesChain(t *testing.T) {
	base := errors.New("original message")
	err := WithStack(base)
	if err.Error() != "original message" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatal("errors.Is should find the base error")
	}
}

func TestEnsureTrace_AddsOnlyOnce(t *testing.T) {
	err := EnsureTrace(errors.New("plain"))
	if len(StackPCs(err)) == 0 {
		t.Fatal("EnsureTrace should add a stack to a plain error")
	}
	if again := EnsureTrace(err); again != err {
		t.Fatal("EnsureTrace should return an already traced error unchanged")
	}
}

func TestEnsureTrace_FindsStackBelowWrap(t *testing.T) {
	inner := New("inner")
	outer := fmt.Errorf("outer: %w", inner)
	if EnsureTrace(outer) != outer {
		t.Fatal("stack deeper in the chain should be honored")
	}
}

// Wrap / Wrapf

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "ctx") != nil || Wrapf(nil, "ctx %d", 1) != nil {
		t.Fatal("wrapping nil should return nil")
	}
}

func TestWrap_MessageAndUnwrap(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := Wrapf(base, "ping %s", "redis")
	if err.Error() != "ping redis: dial tcp: refused" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatal("Wrapf should unwrap to base")
	}
	var pc interface{ PC() uintptr }
	if !errors.As(err, &pc) || pc.PC() == 0 {
		t.Fatal("Wrapf should record a caller pc")
	}
}

// StackPCs / FormatStack

func TestStackPCs_PlainError(t *testing.T) {
	if pcs := StackPCs(errors.New("no stack")); pcs != nil {
		t.Fatalf("plain error should have no stack, got %d pcs", len(pcs))
	}
	if s := Stack(errors.New("no stack")); s != "" {
		t.Fatalf("Stack() = %q, want empty", s)
	}
}

func TestFormatStack_Empty(t *testing.T) {
	if got := FormatStack(nil); got != "" {
		t.Fatalf("FormatStack(nil) = %q", got)
	}
}

func TestFormatStack_FrameLayout(t *testing.T) {
	s := FormatStack(Callers(0))
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		t.Fatalf("expected func/file pairs, got %q", s)
	}
	if !strings.Contains(lines[0], "TestFormatStack_FrameLayout") {
		t.Fatalf("first frame = %q, want the test function", lines[0])
	}
	if !strings.HasPrefix(lines[1], "\t") || !strings.Contains(lines[1], "xerrors_test.go:") {
		t.Fatalf("second line = %q, want tab-indented file:line", lines[1])
	}
	if strings.Contains(s, "runtime.goexit") {
		t.Fatal("runtime frames should be cut")
	}
}
