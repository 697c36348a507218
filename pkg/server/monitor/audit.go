package monitor

import (
	"sync"
	"time"
)

// AuditMonitor tracks the health of the nightly aggregate drift audit.
type AuditMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	lastDriftCount    int
}

// RecordSuccess records a completed audit run and how many drifted
// months it found (and repaired).
func (am *AuditMonitor) RecordSuccess(driftCount int) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.lastSuccess = time.Now()
	am.lastAttempt = time.Now()
	am.consecutiveErrors = 0
	am.lastError = ""
	am.lastDriftCount = driftCount
}

// RecordFailure records a failed audit run.
func (am *AuditMonitor) RecordFailure(err error) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.lastAttempt = time.Now()
	am.consecutiveErrors++
	if err != nil {
		am.lastError = err.Error()
	}
}

// IsHealthy returns true if the audit is working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - Haven't succeeded in >48 hours
//   - More than 3 consecutive failures
func (am *AuditMonitor) IsHealthy() bool {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.healthy()
}

func (am *AuditMonitor) healthy() bool {
	if am.lastSuccess.IsZero() {
		return false
	}
	if time.Since(am.lastSuccess) > 48*time.Hour {
		return false
	}
	if am.consecutiveErrors > 3 {
		return false
	}
	return true
}

// AuditStatus is the audit health summary exposed on /health.
type AuditStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	LastDriftCount    int    `json:"last_drift_count,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current audit status for health checks.
func (am *AuditMonitor) Status() AuditStatus {
	am.mu.RLock()
	defer am.mu.RUnlock()

	status := AuditStatus{
		Healthy: am.healthy(),
	}

	if !am.lastSuccess.IsZero() {
		status.LastSuccess = am.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(am.lastSuccess).String()
		status.LastDriftCount = am.lastDriftCount
	}

	if !am.lastAttempt.IsZero() {
		status.LastAttempt = am.lastAttempt.Format(time.RFC3339)
	}

	if am.consecutiveErrors > 0 {
		status.ConsecutiveErrors = am.consecutiveErrors
		status.LastError = am.lastError
	}

	return status
}
