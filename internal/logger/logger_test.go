package logger

import (
	"context"
	"fmt"
	"os"
	"testing"
)

func TestNewDevelopment(t *testing.T) {
	l, err := New("development")
	if err != nil {
		t.Fatalf("New(development) failed: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Info("test message")
}

func TestNewProduction(t *testing.T) {
	l, err := New("production")
	if err != nil {
		t.Fatalf("New(production) failed: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Info("test message")
}

func TestNewInvalidEnvDefaultsToProduction(t *testing.T) {
	l, err := New("not-a-real-env")
	if err != nil {
		t.Fatalf("New failed on invalid env: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewFromEnvVar(t *testing.T) {
	os.Setenv("APP_ENV", "development")
	defer os.Unsetenv("APP_ENV")

	l, err := New("")
	if err != nil {
		t.Fatalf("New with empty env failed: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if got := ExtractRunID(ctx); got != "" {
		t.Errorf("expected empty run id, got %q", got)
	}

	ctx = WithRunID(ctx, "run-1")
	if got := ExtractRunID(ctx); got != "run-1" {
		t.Errorf("expected run-1, got %q", got)
	}

	ctx = WithRunID(ctx, "run-2")
	if got := ExtractRunID(ctx); got != "run-2" {
		t.Errorf("expected overwritten run-2, got %q", got)
	}
}

func TestJobIDContext(t *testing.T) {
	ctx := context.Background()
	if got := ExtractJobID(ctx); got != "" {
		t.Errorf("expected empty job id, got %q", got)
	}

	ctx = WithJobID(ctx, "job-1")
	if got := ExtractJobID(ctx); got != "job-1" {
		t.Errorf("expected job-1, got %q", got)
	}
}

func TestFromContextAttachesBothFields(t *testing.T) {
	base, err := New("production")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := WithRunID(context.Background(), "run-9")
	ctx = WithJobID(ctx, "job-9")

	// Should not panic, and should produce a distinct logger instance.
	scoped := FromContext(ctx, base)
	if scoped == nil {
		t.Fatal("expected non-nil scoped logger")
	}
	scoped.Info("scoped message")
}

func TestFromContextWithNoIDsIsSafe(t *testing.T) {
	base, err := New("production")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	scoped := FromContext(context.Background(), base)
	scoped.Info("unscoped message")
}

func TestLogPassResult(t *testing.T) {
	l, err := New("development")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	LogPassResult(l, "today", 12, 3, 450)
}

func TestLogExternalCall(t *testing.T) {
	l, err := New("development")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	LogExternalCall(l, "optimizer", "Optimize", 200, nil)

	testErr := fmt.Errorf("optimizer unreachable")
	LogExternalCall(l, "optimizer", "Optimize", 5000, testErr)
}

func TestLoggerConcurrency(t *testing.T) {
	l, err := New("production")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			l.Infof("message from goroutine %d", id)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	l.Sync()
}
