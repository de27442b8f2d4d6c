package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// EscrowMetrics метрики денежного потока заказов.
type EscrowMetrics struct {
	OrdersCreatedTotal       *prometheus.CounterVec
	DepositAmountTotal       prometheus.Counter
	DeliveriesConfirmedTotal prometheus.Counter
	OTPFailuresTotal         *prometheus.CounterVec
	BalancePaidAmountTotal   prometheus.Counter
	EscrowReleasedTotal      prometheus.Counter
	EscrowReleasedAmount     prometheus.Counter
	PlatformCommissionTotal  prometheus.Counter
	ReleaseDuration          prometheus.Histogram
	OperationErrorsTotal     *prometheus.CounterVec
}

// NewEscrowMetrics регистрирует метрики в reg. nil означает глобальный реестр.
func NewEscrowMetrics(reg prometheus.Registerer) *EscrowMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &EscrowMetrics{
		OrdersCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnimarket_orders_created_total",
				Help: "Количество созданных заказов по типу депозита",
			},
			[]string{"deposit_kind"},
		),
		DepositAmountTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "omnimarket_deposit_amount_total",
			Help: "Сумма списанных депозитов",
		}),
		DeliveriesConfirmedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "omnimarket_deliveries_confirmed_total",
			Help: "Количество подтверждённых по коду доставок",
		}),
		OTPFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnimarket_otp_failures_total",
				Help: "Неудачные попытки подтверждения доставки",
			},
			[]string{"reason"},
		),
		BalancePaidAmountTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "omnimarket_balance_paid_amount_total",
			Help: "Сумма оплаченных остатков",
		}),
		EscrowReleasedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "omnimarket_escrow_released_total",
			Help: "Количество выплат продавцам",
		}),
		EscrowReleasedAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "omnimarket_escrow_released_amount_total",
			Help: "Сумма, перечисленная продавцам",
		}),
		PlatformCommissionTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "omnimarket_platform_commission_total",
			Help: "Сумма комиссий платформы",
		}),
		ReleaseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnimarket_escrow_release_duration_seconds",
			Help:    "Время выполнения выплаты",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		OperationErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnimarket_operation_errors_total",
				Help: "Ошибки операций с заказами",
			},
			[]string{"operation", "code"},
		),
	}
}

// Методы допускают nil-получатель, чтобы сервисы работали без метрик.

func (m *EscrowMetrics) RecordOrderCreated(depositKind string, deposit decimal.Decimal) {
	if m == nil {
		return
	}
	m.OrdersCreatedTotal.WithLabelValues(depositKind).Inc()
	m.DepositAmountTotal.Add(deposit.InexactFloat64())
}

func (m *EscrowMetrics) RecordDeliveryConfirmed() {
	if m == nil {
		return
	}
	m.DeliveriesConfirmedTotal.Inc()
}

func (m *EscrowMetrics) RecordOTPFailure(reason string) {
	if m == nil {
		return
	}
	m.OTPFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *EscrowMetrics) RecordBalancePaid(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.BalancePaidAmountTotal.Add(amount.InexactFloat64())
}

func (m *EscrowMetrics) RecordEscrowReleased(sellerAmount, commission decimal.Decimal, took time.Duration) {
	if m == nil {
		return
	}
	m.EscrowReleasedTotal.Inc()
	m.EscrowReleasedAmount.Add(sellerAmount.InexactFloat64())
	m.PlatformCommissionTotal.Add(commission.InexactFloat64())
	m.ReleaseDuration.Observe(took.Seconds())
}

func (m *EscrowMetrics) RecordError(operation, code string) {
	if m == nil {
		return
	}
	m.OperationErrorsTotal.WithLabelValues(operation, code).Inc()
}

// HTTPMetrics метрики входящих запросов.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &HTTPMetrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnimarket_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnimarket_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Middleware собирает метрики по шаблону маршрута, а не по фактическому URL.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
