package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("hello ledger")

	if !strings.Contains(buf.String(), "hello ledger") {
		t.Errorf("expected output to contain message, got: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	ctx := WithContext(context.Background(), log)
	ctxLog := FromContext(ctx)
	ctxLog.Info().Msg("via context")

	if buf.Len() == 0 {
		t.Error("expected log output from context logger")
	}
}

func TestFromContext_Default(t *testing.T) {
	// A bare context still yields a usable logger.
	log := FromContext(context.Background())
	log.Debug().Msg("should not panic")
}

func TestComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := Component(NewWithWriter(buf), "syncer")

	log.Info().Msg("tagged")

	if !strings.Contains(buf.String(), "syncer") {
		t.Errorf("expected component tag in output, got: %s", buf.String())
	}
}
