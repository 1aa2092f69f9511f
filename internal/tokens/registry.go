// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tokens assigns stable mask tokens to normalized entity values.
package tokens

import (
	"fmt"
	"sync"
)

type key struct {
	entityType string
	normalized string
}

// Registry is the run-scoped mapping from (entity type, normalized value)
// to mask token. It grows monotonically and never shrinks: the same value
// always maps to the same token within a run. Tokens come from a per-type
// monotonic counter, never from hashing, so collisions are impossible.
//
// The registry is the one piece of mutable state shared across per-unit
// pipelines; the mutex serializes concurrent assignment. It is deliberately
// not persisted: token mappings die with the run, so no PII mapping ever
// touches disk.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int
	tokens   map[key]string
}

// NewRegistry creates an empty registry for one document run.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]int),
		tokens:   make(map[key]string),
	}
}

// Assign returns the mask token for the value, allocating the next
// sequential index for the entity type on first sight. Tokens look like
// EMAIL_001, PHONE_002.
func (r *Registry) Assign(entityType, normalized string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{entityType: entityType, normalized: normalized}
	if token, ok := r.tokens[k]; ok {
		return token
	}

	r.counters[entityType]++
	token := fmt.Sprintf("%s_%03d", entityType, r.counters[entityType])
	r.tokens[k] = token
	return token
}

// Lookup returns the token already assigned to the value, if any.
func (r *Registry) Lookup(entityType, normalized string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[key{entityType: entityType, normalized: normalized}]
	return token, ok
}

// Count returns how many distinct values of entityType have tokens.
func (r *Registry) Count(entityType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[entityType]
}

// Size returns the total number of assigned tokens across all types.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
