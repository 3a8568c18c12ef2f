// Package api hosts the optional operator HTTP listener. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for live progress of the current pipeline run.
package api
