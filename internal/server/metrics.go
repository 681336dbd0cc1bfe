package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics reúne os coletores HTTP e do chat.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	llmTokens   prometheus.Counter
	llmErrors   prometheus.Counter
	demoReplies prometheus.Counter
	chatBusy    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Name:      "http_requests_total",
			Help:      "Requisições HTTP por método, rota e status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Name:      "http_request_duration_seconds",
			Help:      "Duração das requisições HTTP.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		llmTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Tokens registrados no orçamento após respostas do provedor.",
		}),
		llmErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Falhas do provedor de LLM.",
		}),
		demoReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "llm",
			Name:      "demo_replies_total",
			Help:      "Respostas de demonstração (sem chave de API).",
		}),
		chatBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "chat",
			Name:      "busy_total",
			Help:      "Chamadas recusadas por falta de vaga no pool de concorrência.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.llmTokens, m.llmErrors, m.demoReplies, m.chatBusy} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterBudgetGauge expõe o saldo global de tokens lido sob demanda.
func RegisterBudgetGauge(reg prometheus.Registerer, remaining func() float64) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "portfolio",
		Subsystem: "gate",
		Name:      "tokens_remaining",
		Help:      "Tokens restantes no ciclo atual do orçamento global.",
	}, remaining))
}

// RegisterInFlightGauge expõe quantas chamadas ao provedor estão em voo.
func RegisterInFlightGauge(reg prometheus.Registerer, inUse func() float64) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "portfolio",
		Subsystem: "chat",
		Name:      "in_flight",
		Help:      "Chamadas ao provedor de LLM em andamento.",
	}, inUse))
}

// ChatBusy conta uma recusa do pool de concorrência.
func (m *Metrics) ChatBusy() {
	if m == nil {
		return
	}
	m.chatBusy.Inc()
}

func (m *Metrics) observeRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) tokensUsed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.llmTokens.Add(float64(n))
}

func (m *Metrics) providerError() {
	if m == nil {
		return
	}
	m.llmErrors.Inc()
}

func (m *Metrics) demoReply() {
	if m == nil {
		return
	}
	m.demoReplies.Inc()
}
