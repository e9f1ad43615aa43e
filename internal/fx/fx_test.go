package fx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"", "", true},
		{"usd_to_dop", USDToDOP, false},
		{"  DOP_TO_USD ", DOPToUSD, false},
		{"eur_to_usd", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidDirection) {
			t.Errorf("ParseDirection(%q) error = %v, want ErrInvalidDirection", tt.in, err)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      any
		want    float64
		wantErr bool
	}{
		{nil, 1, false},
		{float64(25.5), 25.5, false},
		{" 100 ", 100, false},
		{"1e3", 1000, false},
		{"ten", 0, true},
		{[]any{1}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAmount(%v) = %v, %v", tt.in, got, err)
		}
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidAmount, "Error: amount must be a number"},
		{ErrInvalidDirection, "Error: direction must be 'usd_to_dop' or 'dop_to_usd'"},
		{errors.Join(ErrNoRate, errors.New("x")), "Error: Could not fetch live rate"},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func rateServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if ua := r.Header.Get("User-Agent"); ua != "Mozilla/5.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConvert_FirstSource(t *testing.T) {
	var secondHits atomic.Int32
	first := rateServer(t, http.StatusOK, `{"date":"2026-10-18","usd":{"dop":60.5}}`, nil)
	second := rateServer(t, http.StatusOK, `{"rates":{"DOP":99}}`, &secondHits)

	c := New(Options{Sources: []Source{
		{Name: "a", URL: first.URL, Path: "usd.dop"},
		{Name: "b", URL: second.URL, Path: "rates.DOP"},
	}})
	conv, err := c.Convert(context.Background(), 10, USDToDOP)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	out, _ := json.Marshal(conv)
	if string(out) != `{"dop":605,"rate":60.5}` {
		t.Errorf("JSON = %s", out)
	}
	if secondHits.Load() != 0 {
		t.Error("second source should not be called")
	}
}

func TestConvert_FallsBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadGateway, `{}`},
		{"missing path", http.StatusOK, `{"usd":{"eur":0.9}}`},
		{"not json", http.StatusOK, `<html>`},
		{"zero rate", http.StatusOK, `{"usd":{"dop":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := rateServer(t, tt.status, tt.body, nil)
			second := rateServer(t, http.StatusOK, `{"result":"success","rates":{"DOP":58}}`, nil)
			c := New(Options{Sources: []Source{
				{Name: "a", URL: first.URL, Path: "usd.dop"},
				{Name: "b", URL: second.URL, Path: "rates.DOP"},
			}})
			conv, err := c.Convert(context.Background(), 580, DOPToUSD)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if conv.USD == nil || *conv.USD != 10 || conv.Rate != 58 || conv.DOP != nil {
				t.Errorf("conversion = %+v", conv)
			}
		})
	}
}

func TestConvert_AllSourcesFail(t *testing.T) {
	bad := rateServer(t, http.StatusInternalServerError, ``, nil)
	c := New(Options{Sources: []Source{{Name: "a", URL: bad.URL, Path: "usd.dop"}}})
	_, err := c.Convert(context.Background(), 1, USDToDOP)
	if !errors.Is(err, ErrNoRate) {
		t.Fatalf("err = %v, want ErrNoRate", err)
	}
	if Message(err) != "Error: Could not fetch live rate" {
		t.Errorf("Message = %q", Message(err))
	}
}

func TestConvert_Rounding(t *testing.T) {
	srv := rateServer(t, http.StatusOK, `{"usd":{"dop":59.123456}}`, nil)
	c := New(Options{Sources: []Source{{URL: srv.URL, Path: "usd.dop"}}})
	conv, err := c.Convert(context.Background(), 3, USDToDOP)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if *conv.DOP != 177.37 || conv.Rate != 59.123456 {
		t.Errorf("conversion = dop %v rate %v", *conv.DOP, conv.Rate)
	}
}

func TestConvert_RecoversRightAfterOutage(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"usd":{"dop":60}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Options{Sources: []Source{{Name: "a", URL: srv.URL, Path: "usd.dop"}}})
	for range 4 {
		if _, err := c.Convert(context.Background(), 1, USDToDOP); !errors.Is(err, ErrNoRate) {
			t.Fatalf("err = %v, want ErrNoRate", err)
		}
	}

	down.Store(false)
	conv, err := c.Convert(context.Background(), 2, USDToDOP)
	if err != nil {
		t.Fatalf("Convert after outage: %v", err)
	}
	if *conv.DOP != 120 {
		t.Errorf("dop = %v, want 120", *conv.DOP)
	}
}

func TestConvert_CancelledCallerKeepsSource(t *testing.T) {
	var hang atomic.Bool
	hang.Store(true)
	arrived := make(chan struct{}, 1)
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hang.Load() {
			arrived <- struct{}{}
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`{"usd":{"dop":60.5}}`))
	}))
	t.Cleanup(first.Close)
	var secondHits atomic.Int32
	second := rateServer(t, http.StatusOK, `{"rates":{"DOP":99}}`, &secondHits)

	c := New(Options{Sources: []Source{
		{Name: "a", URL: first.URL, Path: "usd.dop"},
		{Name: "b", URL: second.URL, Path: "rates.DOP"},
	}})

	for range 3 {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-arrived
			cancel()
		}()
		if _, err := c.Convert(ctx, 1, USDToDOP); err == nil {
			t.Fatal("expected error from cancelled call")
		}
		cancel()
	}
	if secondHits.Load() != 0 {
		t.Fatalf("second source called %d times after cancellation", secondHits.Load())
	}

	hang.Store(false)
	conv, err := c.Convert(context.Background(), 1, USDToDOP)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if conv.Rate != 60.5 || secondHits.Load() != 0 {
		t.Errorf("rate = %v, second hits = %d; first source should still be in use", conv.Rate, secondHits.Load())
	}
}
