package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"HeatPulse/internal/service/ratelimit"
	xhttp "HeatPulse/pkg/http"
	applogger "HeatPulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestFlexFloatDecoding(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{`1.23`, 1.23},
		{`"4.5"`, 4.5},
		{`"-"`, 0},
		{`null`, 0},
		{`""`, 0},
		{`-2.5`, -2.5},
	}
	for _, c := range cases {
		var f flexFloat
		if err := json.Unmarshal([]byte(c.in), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if float64(f) != c.want {
			t.Fatalf("%s: expected %v, got %v", c.in, c.want, float64(f))
		}
	}
}

func TestQuotesPagedFetch(t *testing.T) {
	pages := []string{
		`{"data":{"total":3,"diff":[
			{"f12":"600519","f14":"Kweichow","f2":1700.0,"f3":"2.1","f5":10000,"f6":1.7e7,"f8":0.5,"f10":1.2},
			{"f12":"000001","f14":"PAB","f2":"-","f3":"-","f5":0,"f6":0,"f8":"-","f10":"-"}
		]}}`,
		`{"data":{"total":3,"diff":[
			{"f12":"300750","f14":"CATL","f2":400.0,"f3":-1.0,"f5":5000,"f6":2e6,"f8":1.1,"f10":0.9}
		]}}`,
	}
	var served int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if served >= len(pages) {
			w.Write([]byte(`{"data":null}`))
			return
		}
		w.Write([]byte(pages[served]))
		served++
	}))
	defer srv.Close()

	src := NewEastmoneyQuotes(xhttp.NewClient(), srv.URL, 2, testLogger(t))
	got, err := src.Quotes(context.Background())
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	if got[0].Code != "600519" || got[0].Price != 1700.0 || got[0].ChangePct != 2.1 {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[1].Price != 0 || got[1].VolumeRatio != 0 {
		t.Fatalf("suspended instrument must decode to zeros: %+v", got[1])
	}
}

func TestQuotesPagingTerminatesOnRepeatingFeed(t *testing.T) {
	// the feed repeats its last page for out-of-range pn and reports a
	// total the codeless rows never reach
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"data":{"total":10,"diff":[{"f12":"","f2":1.0},{"f12":"","f2":2.0}]}}`))
	}))
	defer srv.Close()

	src := NewEastmoneyQuotes(xhttp.NewClient(), srv.URL, 2, testLogger(t))
	got, err := src.Quotes(context.Background())
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("codeless rows must be dropped, got %d", len(got))
	}
	if requests > 5 {
		t.Fatalf("paging must stop at the page count implied by total, made %d requests", requests)
	}
}

func TestGubaCollectToleratesFailedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "1600519" {
			w.Write([]byte(`{"count":42,"re":[{"rc":7},{"rc":3}]}`))
			return
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewGubaSource(xhttp.NewClient(), srv.URL, ratelimit.New(), 1000, testLogger(t))
	got, err := src.Collect(context.Background(), []string{"600519", "000001"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected rows for both codes, got %d", len(got))
	}
	if got[0].PostCount != 42 || got[0].CommentCount != 10 {
		t.Fatalf("unexpected counts: %+v", got[0])
	}
	if got[1].PostCount != 0 || got[1].CommentCount != 0 {
		t.Fatalf("failed code must yield zero counts: %+v", got[1])
	}
}

func TestHotListRankToCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"stock_list":[
			{"code":"600519","rate":88.5},
			{"code":"300750","rate":61.0}
		]}}`))
	}))
	defer srv.Close()

	src := NewTHSHotList(xhttp.NewClient(), srv.URL, testLogger(t))
	got, err := src.Collect(context.Background(), []string{"600519", "000001"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("off-list code must be omitted, got %d rows", len(got))
	}
	if got[0].PostCount != 99 || got[0].CommentCount != 88 {
		t.Fatalf("unexpected counts: %+v", got[0])
	}
}
