package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEscrowMetrics_NilReceiver(t *testing.T) {
	var m *EscrowMetrics
	assert.NotPanics(t, func() {
		m.RecordOrderCreated("percent", decimal.NewFromInt(200))
		m.RecordDeliveryConfirmed()
		m.RecordOTPFailure("mismatch")
		m.RecordBalancePaid(decimal.NewFromInt(400))
		m.RecordEscrowReleased(decimal.NewFromInt(588), decimal.NewFromInt(12), time.Millisecond)
		m.RecordError("release", "CONFLICT")
	})
}

func TestEscrowMetrics_Record(t *testing.T) {
	m := NewEscrowMetrics(prometheus.NewRegistry())

	m.RecordOrderCreated("fixed", decimal.NewFromInt(200))
	m.RecordOrderCreated("fixed", decimal.NewFromInt(50))
	m.RecordEscrowReleased(decimal.NewFromInt(588), decimal.NewFromInt(12), 3*time.Millisecond)
	m.RecordOTPFailure("mismatch")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.OrdersCreatedTotal.WithLabelValues("fixed")))
	assert.Equal(t, float64(250), testutil.ToFloat64(m.DepositAmountTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EscrowReleasedTotal))
	assert.Equal(t, float64(588), testutil.ToFloat64(m.EscrowReleasedAmount))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.PlatformCommissionTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OTPFailuresTotal.WithLabelValues("mismatch")))
}

func TestHTTPMetrics_MiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewHTTPMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/"+string(rune('a'+i)), nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "/orders/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
