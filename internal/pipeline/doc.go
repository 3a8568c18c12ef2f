// Package pipeline runs the producer, worker pool and writer that turn a list
// of URLs into JSON-lines output.
//
// Stages communicate only through two queues. The producer pushes every URL
// followed by exactly one end-of-stream sentinel per worker, so each worker
// sees its own termination signal. The result queue receives a single
// sentinel, pushed by Run only after every worker has returned; pushing it
// earlier would let a late result land after the writer stopped.
package pipeline
