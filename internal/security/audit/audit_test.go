package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
)

func TestLogTransitionWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := logger.WithRequestID(context.Background(), "req-1")

	al.LogTransition(ctx, "emp-1", "verify", "tx-9", StatusSuccess, "")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]string{
		"msg":         "audit",
		"action":      "verify",
		"resource":    "transaction",
		"resource_id": "tx-9",
		"actor_id":    "emp-1",
		"status":      "success",
		"request_id":  "req-1",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %s", k, rec[k], v)
		}
	}
}
