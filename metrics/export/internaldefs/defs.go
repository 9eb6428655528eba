package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one authcore counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one authcore histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed password logins."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the failure budget."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logouts of authenticated sessions."},
	{ID: authcore.MetricForcedLogin, Name: "authcore_forced_login_total", Help: "Logins without credentials."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Sessions created for empty, unknown or expired tokens."},
	{ID: authcore.MetricSessionLoaded, Name: "authcore_session_loaded_total", Help: "Sessions loaded from the backend."},
	{ID: authcore.MetricSessionSaved, Name: "authcore_session_saved_total", Help: "Session writes."},
	{ID: authcore.MetricSessionSaveFailure, Name: "authcore_session_save_failure_total", Help: "Failed session writes."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeRejected, Name: "authcore_password_change_rejected_total", Help: "Password changes rejected by policy."},
	{ID: authcore.MetricPasswordRehash, Name: "authcore_password_rehash_total", Help: "Password hashes upgraded at login."},
	{ID: authcore.MetricSessionsRevoked, Name: "authcore_sessions_revoked_total", Help: "Sessions deleted after password changes."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Password login latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBoundSuffix names each bucket in flat exporters.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling when the
// histogram is disabled.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
