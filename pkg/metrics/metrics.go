// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package metrics defines the Prometheus collectors exposed by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ValidationsTotal counts validator verdicts on record writes.
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperstreak_validations_total",
			Help: "Total number of progression record writes checked by the validator",
		},
		[]string{"verdict"},
	)

	// ViolationsTotal counts rejected transitions by violation kind.
	ViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperstreak_violations_total",
			Help: "Total number of illegal progression transitions reverted",
		},
		[]string{"kind"},
	)

	// CorrectionFailuresTotal counts corrective writes that failed after retries.
	CorrectionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hyperstreak_correction_failures_total",
			Help: "Total number of corrective writes that failed after all retries",
		},
	)

	// PendingCorrections is the number of corrections waiting for the retry sweep.
	PendingCorrections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hyperstreak_pending_corrections",
			Help: "Number of corrective writes parked for retry",
		},
	)

	// DeltaWritesTotal counts field-delta writes received over gRPC.
	DeltaWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperstreak_delta_writes_total",
			Help: "Total number of progression delta writes received",
		},
		[]string{"result"},
	)
)

// MustRegister registers every collector of this package on registry.
func MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		ValidationsTotal,
		ViolationsTotal,
		CorrectionFailuresTotal,
		PendingCorrections,
		DeltaWritesTotal,
	)
}
