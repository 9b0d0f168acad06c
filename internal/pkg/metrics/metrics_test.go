package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePoolStat struct{ acquired, idle, total int32 }

func (f fakePoolStat) AcquiredConns() int32 { return f.acquired }
func (f fakePoolStat) IdleConns() int32     { return f.idle }
func (f fakePoolStat) TotalConns() int32    { return f.total }

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/v1/sessions/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/sessions/:id", "200"))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/abc", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/sessions/:id", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestHandler_ExposesTourMetrics(t *testing.T) {
	LocationSamples.WithLabelValues("entered").Inc()

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "campustour_tour_location_samples_total") {
		t.Error("expected location sample counter in exposition")
	}
}

func TestUpdateDBPoolMetrics(t *testing.T) {
	UpdateDBPoolMetrics(fakePoolStat{acquired: 2, idle: 3, total: 5})

	if got := testutil.ToFloat64(DBPoolConnsOpen); got != 5 {
		t.Errorf("open = %v, want 5", got)
	}
	if got := testutil.ToFloat64(DBPoolConnsIdle); got != 3 {
		t.Errorf("idle = %v, want 3", got)
	}
}
