package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPlaceOrder(t *testing.T) {
	var gotKeyID, gotSecret string
	var gotReq OrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		gotKeyID = r.Header.Get("APCA-API-KEY-ID")
		gotSecret = r.Header.Get("APCA-API-SECRET-KEY")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"id":"ord-1","symbol":"AAPL","qty":"2","side":"buy","type":"market","status":"accepted"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key-id", "secret", srv.URL)
	order, err := c.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "AAPL", Qty: "2", Side: "buy", Type: "market", TimeInForce: "day",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if gotKeyID != "key-id" || gotSecret != "secret" {
		t.Errorf("auth headers = %q / %q", gotKeyID, gotSecret)
	}
	if gotReq.TimeInForce != "day" {
		t.Errorf("time_in_force = %q", gotReq.TimeInForce)
	}
	if order.ID != "ord-1" || order.Status != "accepted" {
		t.Errorf("order = %+v", order)
	}
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "s", srv.URL)
	_, err := c.PlaceOrder(context.Background(), OrderRequest{Symbol: "AAPL", Qty: "9999", Side: "buy", Type: "market", TimeInForce: "day"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "insufficient buying power") {
		t.Errorf("error = %v, want the API message surfaced", err)
	}
}

func TestGetAccountAndPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/account":
			w.Write([]byte(`{"id":"acct","status":"ACTIVE","currency":"USD","cash":"1000.00","portfolio_value":"1500.00","equity":"1500.00"}`))
		case "/v2/positions":
			w.Write([]byte(`[{"symbol":"AAPL","qty":"2","side":"long","avg_entry_price":"200.00","market_value":"420.00"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "s", srv.URL)

	acct, err := c.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Cash != "1000.00" || acct.Status != "ACTIVE" {
		t.Errorf("account = %+v", acct)
	}

	positions, err := c.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" {
		t.Errorf("positions = %+v", positions)
	}
}

func TestListOrdersDefaults(t *testing.T) {
	var gotStatus, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStatus = r.URL.Query().Get("status")
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "s", srv.URL)
	if _, err := c.ListOrders(context.Background(), "", 0); err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if gotStatus != "open" || gotLimit != "50" {
		t.Errorf("status = %q limit = %q", gotStatus, gotLimit)
	}
}

func TestCancelOrder(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "s", srv.URL)
	if err := c.CancelOrder(context.Background(), "ord-1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if gotPath != "DELETE /v2/orders/ord-1" {
		t.Errorf("path = %q", gotPath)
	}
}
