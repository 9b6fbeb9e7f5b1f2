package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	UsersCreated  *prometheus.CounterVec
	LoginAttempts *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_users_created_total",
			Help: "Users created, by signup source",
		}, []string{"source"}),
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_login_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) incUserCreated(source string) {
	if m == nil {
		return
	}
	m.UsersCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) incLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}
