// Package ingestion runs uploaded documents through the processing pipeline:
// extract text, split into chunks, embed each chunk, and write the vectors to
// the index. Processing is asynchronous; the upload call returns as soon as
// the document record and its job are durable. Transient embedding failures
// are retried with backoff, terminal failures mark the document Failed with
// a cause.
package ingestion
