/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics defines Prometheus metrics for the broker.
//
// Metric naming follows Prometheus conventions:
//   - linuxmcp_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuthzDecisionsTotal counts authorization decisions by level and outcome.
	AuthzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linuxmcp_authz_decisions_total",
			Help: "Total authorization decisions by auth level and outcome.",
		},
		[]string{"level", "outcome"},
	)

	// SSHCommandsTotal counts remote commands by channel and status.
	SSHCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linuxmcp_ssh_commands_total",
			Help: "Total SSH commands executed by channel and status.",
		},
		[]string{"channel", "status"},
	)

	// SSHCommandDurationSeconds is a histogram of remote command duration.
	SSHCommandDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linuxmcp_ssh_command_duration_seconds",
			Help:    "Duration of SSH commands in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"channel"},
	)

	// PendingApprovals is the number of commands awaiting a decision.
	PendingApprovals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linuxmcp_pending_approvals",
			Help: "Number of commands currently awaiting approval.",
		},
	)

	// LearningRecordsTotal counts denied commands fed to the collector.
	LearningRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linuxmcp_learning_records_total",
			Help: "Total denied commands recorded for whitelist learning.",
		},
	)

	// RemediationActionsTotal counts remediation actions by action and status.
	RemediationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linuxmcp_remediation_actions_total",
			Help: "Total remediation actions by action name and status.",
		},
		[]string{"action", "status"},
	)

	// ToolCallsTotal counts MCP tool invocations by tool and status.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linuxmcp_tool_calls_total",
			Help: "Total MCP tool calls by tool name and status.",
		},
		[]string{"tool", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthzDecisionsTotal,
		SSHCommandsTotal,
		SSHCommandDurationSeconds,
		PendingApprovals,
		LearningRecordsTotal,
		RemediationActionsTotal,
		ToolCallsTotal,
	)
}

// RecordDecision records one authorization decision.
func RecordDecision(level string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	AuthzDecisionsTotal.WithLabelValues(level, outcome).Inc()
}

// RecordSSHCommand records one remote command execution.
func RecordSSHCommand(channel, status string, duration time.Duration) {
	SSHCommandsTotal.WithLabelValues(channel, status).Inc()
	SSHCommandDurationSeconds.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordRemediation records one remediation action outcome.
func RecordRemediation(action, status string) {
	RemediationActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordToolCall records one MCP tool invocation.
func RecordToolCall(tool, status string) {
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
