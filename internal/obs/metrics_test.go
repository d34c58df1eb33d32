package obs

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                 "other",
		"/":                "other",
		"/metrics":         "/metrics",
		"/healthz":         "/healthz",
		"/v1/info":         "/v1/info",
		"/posts":           "/posts",
		"/posts/":          "other",
		"/posts/abc":       "/posts/:id",
		"/posts/abc?x=1":   "/posts/:id",
		"/posts/abc/extra": "other",
		"/auth/login":      "/auth/login",
		"/auth/me?pretty":  "/auth/me",
		"/scan-1":          "other",
		"/wp-login.php":    "other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentUnknownPathsShareOneSeries(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	seriesBefore := testCollectCount(t, httpRequestsTotal)
	before := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))
	for i := range 50 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scan-%d", i), nil))
	}
	after := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))
	if after-before != 50 {
		t.Fatalf("expected 50 requests under other, got %v", after-before)
	}
	if grown := testCollectCount(t, httpRequestsTotal) - seriesBefore; grown > 1 {
		t.Fatalf("unknown paths created %d new series", grown)
	}
}

// testCollectCount returns how many series c currently exports.
func testCollectCount(t *testing.T, c prometheus.Collector) int {
	t.Helper()
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	n := 0
	for range ch {
		n++
	}
	return n
}

func TestInstrumentCountsByCanonicalPath(t *testing.T) {
	Init()
	Init()

	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/posts/:id", "418"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/"+id, nil))
	}
	after := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/posts/:id", "418"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests counted, got %v", after-before)
	}
	if v := counterValue(t, httpInFlight); v != 0 {
		t.Fatalf("in-flight gauge not released: %v", v)
	}
}

func TestAuthCounters(t *testing.T) {
	before := counterValue(t, authRejections.WithLabelValues("missing"))
	AuthRejected("missing")
	if got := counterValue(t, authRejections.WithLabelValues("missing")); got != before+1 {
		t.Fatalf("auth_rejections_total{missing}=%v, want %v", got, before+1)
	}

	before = counterValue(t, authLogins.WithLabelValues("invalid"))
	LoginAttempt("invalid")
	if got := counterValue(t, authLogins.WithLabelValues("invalid")); got != before+1 {
		t.Fatalf("auth_logins_total{invalid}=%v, want %v", got, before+1)
	}
}

func TestBuildInfoExposed(t *testing.T) {
	InitBuildInfo("1.2.3", "abc")
	InitBuildInfo("1.2.4", "def")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `build_info{commit="def",version="1.2.4"} 1`) {
		t.Fatalf("build_info missing from metrics output:\n%s", body)
	}
	if strings.Contains(body, `version="1.2.3"`) {
		t.Fatal("stale build_info series still exported")
	}
}
