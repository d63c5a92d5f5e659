// Package search provides direct retrieval over the chunk index without
// answer generation. It is the free, token-less way to inspect what the
// index would supply as evidence for a question: embed the query, rank
// chunks by similarity, and boost chunks that contain every query word
// verbatim.
package search
