// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - State must be a known DocumentState
//   - ChunkCount must not be negative
//
// NOT validated:
//   - Error (only meaningful when State is Failed)
//   - Timestamps (populated by the repository)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if err := ValidateDocumentState(doc.State); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.ChunkCount < 0 {
		return fmt.Errorf("%w: chunk count %d", ErrInvalidDocument, doc.ChunkCount)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Ordinal must not be negative
//
// NOT validated (populated during ingestion):
//   - Vector (empty until the document is embedded)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Ordinal < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeOrdinal)
	}

	return nil
}

// ValidateDocumentState validates that a DocumentState has a valid value.
func ValidateDocumentState(state DocumentState) error {
	switch state {
	case DocumentPending, DocumentProcessing, DocumentReady, DocumentFailed, DocumentCancelled:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidDocumentState, state)
	}
}
