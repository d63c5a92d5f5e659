// Package answer serves questions against the ingested corpus. A question is
// normalized and fingerprinted, answered from the response cache when
// possible, and otherwise resolved by embedding the question, retrieving the
// most similar chunks, and generating an answer grounded on them. Identical
// in-flight questions are collapsed into a single computation, and every
// generator call first acquires a token from the shared rate limiter.
package answer
