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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidTransition indicates a document state change that is not in
	// the allowed transition graph. This is a programming or race bug, not a
	// retryable condition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrEmptyContent indicates the text content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidDocumentState indicates an unknown DocumentState value.
	ErrInvalidDocumentState = errors.New("invalid document state")

	// ErrNegativeOrdinal indicates a chunk ordinal below zero.
	ErrNegativeOrdinal = errors.New("chunk ordinal cannot be negative")
)
