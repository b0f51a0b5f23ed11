package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

func TestQueueStreamDeliversLifecycleEvents(t *testing.T) {
	srv := newTestServer(t, 1000)
	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/intl/stream?token="

	alice := srv.client(t)
	registerAlice(t, alice)
	alice.login("alice", testPassword)

	// Customers are refused before the upgrade.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+alice.token, nil)
	if err == nil {
		t.Fatal("customer opened the queue stream")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer handshake response %+v", resp)
	}

	eve := srv.employee(t)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL+eve.token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.hub.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", srv.hub.Subscribers())
	}

	rec := alice.do(http.MethodPost, "/api/tx", map[string]any{
		"amount":      "99.95",
		"currency":    "EUR",
		"provider":    "SWIFT",
		"swiftBic":    "DEUTDEFF",
		"beneficiary": map[string]string{"name": "Hans GmbH", "ibanOrAccount": "DE89370400440532013000"},
	})
	expectStatus(t, rec, http.StatusCreated)
	var tx domain.Transaction
	decode(t, rec, &tx)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event domain.TransactionEvent
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != domain.EventTransactionCreated || event.TransactionID != tx.ID || event.Amount != "99.95" {
		t.Fatalf("event %+v", event)
	}

	srv.hub.Close()
	_, _, err = ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}
