package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"postquery/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func TestGormLoggerAdapterLevels(t *testing.T) {
	testCases := []struct {
		name      string
		logLevel  logger.LogLevel
		wantInfo  bool
		wantTrace bool
	}{
		{"Warn Level", logger.Warn, false, false},
		{"Info Level", logger.Info, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			restore := Replace(zap.New(core))
			defer restore()

			adapter := NewGormLoggerAdapter(tc.logLevel)
			if adapter.LogMode(logger.Info) == nil {
				t.Fatal("LogMode should return a new adapter")
			}

			ctx := context.Background()
			adapter.Info(ctx, "test info message")
			adapter.Warn(ctx, "test warn message")
			adapter.Error(ctx, "test error message")
			adapter.Trace(ctx, time.Now(), func() (string, int64) {
				return "SELECT * FROM posts", 1
			}, nil)

			if got := logs.FilterMessage("test info message").Len() > 0; got != tc.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tc.wantInfo)
			}
			if logs.FilterMessage("test warn message").Len() == 0 {
				t.Error("warn message not found")
			}
			if logs.FilterMessage("test error message").Len() == 0 {
				t.Error("error message not found")
			}
			traces := logs.FilterMessage("SQL query executed").All()
			if got := len(traces) > 0; got != tc.wantTrace {
				t.Fatalf("trace logged = %v, want %v", got, tc.wantTrace)
			}
			if tc.wantTrace && traces[0].ContextMap()["sql"] != "SELECT * FROM posts" {
				t.Error("SQL query not found in trace log fields")
			}
		})
	}
}

func TestGormLoggerAdapterContextAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	adapter := NewGormLoggerAdapterWithConfig(logger.Info, &GormLoggerConfig{
		SlowThreshold:             10 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	})

	ctx := persistence.ContextWithRequestID(context.Background(), "req-123")
	ctx = persistence.ContextWithAggregateID(ctx, "post-9")

	adapter.Trace(ctx, time.Now().Add(-20*time.Millisecond), func() (string, int64) {
		return "SELECT * FROM comments", 3
	}, nil)
	adapter.Trace(ctx, time.Now(), func() (string, int64) {
		return "SELECT * FROM posts WHERE id = 'x'", 0
	}, logger.ErrRecordNotFound)
	adapter.Trace(ctx, time.Now(), func() (string, int64) {
		return "UPDATE posts SET likes = likes + 1", 0
	}, errors.New("boom"))

	slow := logs.FilterMessage("Slow SQL query").All()
	if len(slow) != 1 {
		t.Fatalf("expected 1 slow query entry, got %d", len(slow))
	}
	fields := slow[0].ContextMap()
	if fields["request_id"] != "req-123" {
		t.Errorf("request_id = %v", fields["request_id"])
	}
	if fields["aggregate_id"] != "post-9" {
		t.Errorf("aggregate_id = %v", fields["aggregate_id"])
	}

	failed := logs.FilterMessage("Database operation failed").All()
	if len(failed) != 1 {
		t.Fatalf("expected only the non-ErrRecordNotFound failure to be logged, got %d", len(failed))
	}
}

func TestParseGormLevel(t *testing.T) {
	if ParseGormLevel("silent") != logger.Silent {
		t.Error("silent")
	}
	if ParseGormLevel("debug") != logger.Info {
		t.Error("debug maps to Info")
	}
	if ParseGormLevel("") != logger.Warn {
		t.Error("default is Warn")
	}
}
