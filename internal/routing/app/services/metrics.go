package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	AssignModeManual = "manual"
	AssignModeAuto   = "auto"

	RunResultOK       = "ok"
	RunResultDisabled = "disabled"
	RunResultBusy     = "busy"
	RunResultFailed   = "failed"
)

// Metrics holds the routing counters. A nil *Metrics records nothing.
type Metrics struct {
	assigned      *prometheus.CounterVec
	runs          *prometheus.CounterVec
	unmatched     prometheus.Counter
	statusChanges *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_router_orders_assigned_total",
			Help: "Orders assigned to a store.",
		}, []string{"mode"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_router_auto_assign_runs_total",
			Help: "Auto-assignment runs by result.",
		}, []string{"result"}),
		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_router_orders_unmatched_total",
			Help: "Orders left pending because no store name matched.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_router_status_changes_total",
			Help: "Order status changes by new status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.assigned, m.runs, m.unmatched, m.statusChanges)
	}
	return m
}

func (m *Metrics) Assigned(mode string) {
	if m == nil {
		return
	}
	m.assigned.WithLabelValues(mode).Inc()
}

func (m *Metrics) Run(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

func (m *Metrics) Unmatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unmatched.Add(float64(n))
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}
