package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datons/esios-go/internal/errs"
)

func TestClientGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("missing api key header, got %q", r.Header.Get("x-api-key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":1,"name":"Demand"}]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	c.MaxRetries = 0

	var out struct {
		Items []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := c.Get(context.Background(), "indicators", nil, &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Name != "Demand" {
		t.Errorf("Get() decoded = %+v", out)
	}
}

func TestClientGetAuthErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := NewClient("bad-key", srv.URL)
	c.MaxRetries = 3

	err := c.Get(context.Background(), "indicators", nil, &struct{}{})
	if err == nil {
		t.Fatal("Get() error = nil, want an auth error")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (auth errors are not retried)", calls)
	}
}

func TestClientGetPermanentErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL)
	c.MaxRetries = 3

	if err := c.Get(context.Background(), "indicators/999", nil, &struct{}{}); err == nil {
		t.Fatal("Get() error = nil, want a permanent transport error")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (404s are not retried)", calls)
	}
}

func TestClientGetRetriesTransientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL)
	c.MaxRetries = 5

	if err := c.Get(context.Background(), "indicators", nil, &struct{}{}); err != nil {
		t.Fatalf("Get() error = %v, want eventual success after retries", err)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
}

func TestClientDownloadFollowsRedirectWithoutAPIKey(t *testing.T) {
	var sawKeyOnPresigned bool
	presigned := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "" {
			sawKeyOnPresigned = true
		}
		w.Write([]byte("archive-bytes"))
	}))
	defer presigned.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, presigned.URL, http.StatusFound)
	}))
	defer api.Close()

	c := NewClient("secret", api.URL)
	var buf bytes.Buffer
	if err := c.Download(context.Background(), "archives/1", nil, &buf); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != "archive-bytes" {
		t.Errorf("Download() body = %q", buf.String())
	}
	if sawKeyOnPresigned {
		t.Error("the presigned redirect target should never see our api key header")
	}
}

func TestRetryAfterParsesSecondsAndHTTPDate(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "2")
	if got := retryAfter(h); got != 2*time.Second {
		t.Errorf("retryAfter(seconds) = %v, want 2s", got)
	}

	h = http.Header{}
	h.Set("Retry-After", time.Now().Add(10*time.Second).UTC().Format(http.TimeFormat))
	if got := retryAfter(h); got <= 0 || got > 10*time.Second {
		t.Errorf("retryAfter(http-date) = %v, want within (0, 10s]", got)
	}

	h = http.Header{}
	if got := retryAfter(h); got != 0 {
		t.Errorf("retryAfter(missing) = %v, want 0", got)
	}
}

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &errs.AuthError{StatusCode: 401, Msg: "x"}, "auth_error"},
		{"transient", &errs.TransientTransportError{StatusCode: 503}, "transient_error"},
		{"permanent", &errs.PermanentTransportError{StatusCode: 404}, "permanent_error"},
		{"other", context.Canceled, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeLabel(tt.err); got != tt.want {
				t.Errorf("outcomeLabel(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	if classifyStatus(http.StatusOK) != nil {
		t.Error("classifyStatus(200) should be nil")
	}
	if _, ok := classifyStatus(http.StatusTooManyRequests).(*errs.TransientTransportError); !ok {
		t.Error("classifyStatus(429) should be transient")
	}
	if _, ok := classifyStatus(http.StatusBadRequest).(*errs.PermanentTransportError); !ok {
		t.Error("classifyStatus(400) should be permanent")
	}
}
