// Package main hosts the fetchpipe entrypoint.
//
// Architecture overview:
//   - Source and sink: locations are local paths or gs://bucket/object URIs, resolved through a
//     storage.Router (local filesystem by default, GCS when a gs:// location is configured).
//   - Pipeline: a producer streams URLs into a bounded queue, a fixed pool of workers fetches each
//     URL through the colly client with retry and exponential backoff, and a single writer appends
//     JSON lines to the sink. Shutdown is driven by sentinels, not cancellation; SIGINT/SIGTERM
//     cancel the run early.
//   - Side channels: failed URLs go to Postgres when failures.dsn is set, and a run summary is
//     published to Pub/Sub when notify.topic is set.
//   - Observability: zap logs carry run IDs and URLs; Prometheus metrics and live progress are served
//     on metrics.listen_addr when set.
//
// Quick checklist:
//   - Configure env vars: FETCHPIPE_SOURCE_PATH, FETCHPIPE_SINK_PATH, FETCHPIPE_PIPELINE_WORKER_COUNT,
//     FETCHPIPE_HTTP_TIMEOUT, FETCHPIPE_RETRY_MAX_ATTEMPTS, FETCHPIPE_PIPELINE_OUTPUT_MODE.
//   - Run locally: go run ./cmd/fetchpipe -config config.yaml (or rely solely on env overrides).
package main
