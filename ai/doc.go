// Package ai defines the capability interfaces for the AI services the
// pipeline depends on: text embedding and answer generation. Concrete
// backends live in subpackages (openai for remote OpenAI-compatible APIs,
// local for the offline hashing embedder, mock for tests); callers select a
// backend once at startup via configuration.
package ai
