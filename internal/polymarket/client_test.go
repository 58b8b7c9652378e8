package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/whalefuse/whalefuse/internal/models"
)

func TestFetchWhaleTrades_FiltersAndGroups(t *testing.T) {
	now := time.Now().Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trades" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintf(w, `[
			{"proxyWallet":"0xa","side":"BUY","outcome":"Yes","size":40000,"price":0.5,"timestamp":%d,"conditionId":"m1","title":"Will BTC reach $200k?"},
			{"proxyWallet":"0xb","side":"SELL","outcome":"Yes","size":30000,"price":0.5,"timestamp":%d,"conditionId":"m1","title":"Will BTC reach $200k?"},
			{"proxyWallet":"0xc","side":"BUY","outcome":"No","size":100,"price":0.5,"timestamp":%d,"conditionId":"m1","title":"Will BTC reach $200k?"},
			{"proxyWallet":"0xd","side":"BUY","outcome":"Yes","size":50000,"price":0.4,"timestamp":%d,"conditionId":"m2","title":"Who wins the election?"}
		]`, now, now, now, now)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 5000, 1)
	markets, err := c.FetchWhaleTrades(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchWhaleTrades failed: %v", err)
	}

	if len(markets) != 2 {
		t.Fatalf("Expected 2 markets, got %d", len(markets))
	}
	m1 := markets["m1"]
	if m1 == nil {
		t.Fatal("Expected market m1")
	}
	// The $50 trade by 0xc is below the whale threshold.
	if len(m1.Trades) != 2 {
		t.Fatalf("Expected 2 whale trades for m1, got %d", len(m1.Trades))
	}
	if m1.Trades[0].SizeUSD != 20000 {
		t.Errorf("Expected USD size computed from size*price, got %f", m1.Trades[0].SizeUSD)
	}
	if markets["m2"].Trades[0].Category != models.CategoryPolitics {
		t.Errorf("Expected politics category for m2, got %s", markets["m2"].Trades[0].Category)
	}
}

func TestFetchWhaleTrades_ExcludesStale(t *testing.T) {
	stale := time.Now().Add(-48 * time.Hour).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"proxyWallet":"0xa","side":"BUY","outcome":"Yes","size":40000,"price":0.5,"timestamp":%d,"conditionId":"m1","title":"q"}]`, stale)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 5000, 1)
	markets, err := c.FetchWhaleTrades(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchWhaleTrades failed: %v", err)
	}
	if len(markets) != 0 {
		t.Errorf("Expected trades outside the lookback dropped, got %d markets", len(markets))
	}
}

func TestFetchPriceHistory_DerivesReturns(t *testing.T) {
	base := time.Now().Add(-2 * time.Hour).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices-history" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"history":[
			{"t":%d,"p":0.50},
			{"t":%d,"p":0.55},
			{"t":%d,"p":0.44}
		]}`, base, base+600, base+1200)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 5000, 1)
	samples, err := c.FetchPriceHistory(context.Background(), "m1", 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchPriceHistory failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}
	if samples[0].Return != 0 {
		t.Errorf("Expected zero return on the first sample, got %f", samples[0].Return)
	}
	if got := samples[1].Return; got < 0.099 || got > 0.101 {
		t.Errorf("Expected return near +0.10, got %f", got)
	}
	if got := samples[2].Return; got < -0.201 || got > -0.199 {
		t.Errorf("Expected return near -0.20, got %f", got)
	}
}

func TestFetchResolutions_OnlyClosedMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("condition_ids")
		switch id {
		case "m1":
			fmt.Fprint(w, `[{"conditionId":"m1","closed":true,"outcomes":["Yes","No"],"outcomePrices":["1","0"]}]`)
		case "m2":
			fmt.Fprint(w, `[{"conditionId":"m2","closed":false,"outcomes":["Yes","No"],"outcomePrices":["0.6","0.4"]}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 5000, 1)
	resolutions, err := c.FetchResolutions(context.Background(), []string{"m1", "m2", "m3"})
	if err != nil {
		t.Fatalf("FetchResolutions failed: %v", err)
	}
	if len(resolutions) != 1 {
		t.Fatalf("Expected exactly one settled market, got %d", len(resolutions))
	}
	if resolutions[0].MarketID != "m1" || resolutions[0].WinningOutcome != "Yes" {
		t.Errorf("Unexpected resolution: %+v", resolutions[0])
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 5000, 3)
	if _, err := c.FetchWhaleTrades(context.Background(), time.Hour); err != nil {
		t.Fatalf("Expected retries to recover from transient 500s, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestDoRequest_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 5000, 3)
	if _, err := c.FetchWhaleTrades(context.Background(), time.Hour); err == nil {
		t.Fatal("Expected error for 404 response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected a single attempt for a client error, got %d", got)
	}
}
