// Package prometheus exposes authcore metrics as a prometheus.Collector.
//
// [NewCollector] reads a metrics snapshot on every scrape; [Handler] serves
// it from a private registry through promhttp. Counter names are
// authcore_*_total and the login latency is the histogram
// authcore_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate manager state.
package prometheus
