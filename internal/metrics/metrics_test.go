package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestObserversUpdateCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("query", "ok", 120*time.Millisecond)
	m.ObserveRequest("query", "ok", 80*time.Millisecond)
	m.ObserveRequest("fetch_page", "error", time.Second)
	m.ObserveCacheLookup("stale")
	m.ObserveRegeneration("ok", 2*time.Second)

	out := scrape(t, m)
	for _, want := range []string{
		`spacetraveling_cms_requests_total{operation="query",outcome="ok"} 2`,
		`spacetraveling_cms_requests_total{operation="fetch_page",outcome="error"} 1`,
		`spacetraveling_page_cache_lookups_total{state="stale"} 1`,
		`spacetraveling_page_regenerations_total{outcome="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/post/:slug", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/post/hooks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}

	out := scrape(t, m)
	want := `spacetraveling_http_requests_total{method="GET",route="/post/:slug",status="200"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %q in metrics output", want)
	}
}

func TestInstancesDoNotShareRegistry(t *testing.T) {
	a, b := New(), New()
	a.ObserveCacheLookup("miss")
	if strings.Contains(scrape(t, b), `state="miss"`) {
		t.Fatalf("expected separate registries")
	}
}
