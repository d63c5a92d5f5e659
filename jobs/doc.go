// Package jobs provides the asynchronous execution layer: a queue backed by
// worker pools, retry with exponential backoff for transient failures, and
// per-document serialization so two jobs never touch the same document
// concurrently. Ingestion and answering run on separate pools so a burst of
// uploads cannot starve question answering.
package jobs
