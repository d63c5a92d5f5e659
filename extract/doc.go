// Package extract turns uploaded document payloads into plain text and
// splits that text into overlapping chunks sized for embedding. Extraction
// is keyed on the document's declared content type; unknown types are
// rejected rather than guessed at.
package extract
