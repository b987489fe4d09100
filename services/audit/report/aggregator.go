// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report collects audit observations and renders them.
//
// The Aggregator is the run's single sink: every analysis result is
// written exactly once under a (catalog, property, entity class) key.
// The entity class is part of the key on purpose. Two classes sharing a
// property URI (dct:title on datasets and on distributions, say) are
// distinct checks and must never overwrite each other.
package report

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/compliance"
	"github.com/openmobility/dcatlens/services/audit/vocabulary"
)

// ErrDuplicateObservation indicates two writes under the same
// (catalog, property, class) key. Observations are immutable once
// recorded, so a second write is a programming error in the caller, not
// a data condition to merge away.
var ErrDuplicateObservation = errors.New("duplicate observation for key")

// PropertyKey identifies one check: a property URI applied to one entity
// class.
type PropertyKey struct {
	Property string
	Class    catalog.EntityClass
}

func (k PropertyKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Property, k.Class)
}

// Aggregator is a write-once result store, safe for concurrent writers.
//
// # Thread Safety
//
// All methods may be called from multiple goroutines. The
// check-then-insert on write is atomic under the mutex, so concurrent
// duplicate writers cannot both succeed.
type Aggregator struct {
	mu         sync.Mutex
	compliance map[string]map[PropertyKey]compliance.PropertyObservation
	vocabulary map[string]map[PropertyKey]vocabulary.Observation
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		compliance: make(map[string]map[PropertyKey]compliance.PropertyObservation),
		vocabulary: make(map[string]map[PropertyKey]vocabulary.Observation),
	}
}

// PutCompliance records one compliance observation. A duplicate key
// returns ErrDuplicateObservation and leaves the stored value untouched.
func (a *Aggregator) PutCompliance(catalogID string, key PropertyKey, obs compliance.PropertyObservation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	byKey, ok := a.compliance[catalogID]
	if !ok {
		byKey = make(map[PropertyKey]compliance.PropertyObservation)
		a.compliance[catalogID] = byKey
	}
	if _, exists := byKey[key]; exists {
		return fmt.Errorf("%w: catalog %s, %s", ErrDuplicateObservation, catalogID, key)
	}
	byKey[key] = obs
	return nil
}

// PutVocabulary records one vocabulary observation. A duplicate key
// returns ErrDuplicateObservation and leaves the stored value untouched.
func (a *Aggregator) PutVocabulary(catalogID string, key PropertyKey, obs vocabulary.Observation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	byKey, ok := a.vocabulary[catalogID]
	if !ok {
		byKey = make(map[PropertyKey]vocabulary.Observation)
		a.vocabulary[catalogID] = byKey
	}
	if _, exists := byKey[key]; exists {
		return fmt.Errorf("%w: catalog %s, %s", ErrDuplicateObservation, catalogID, key)
	}
	byKey[key] = obs
	return nil
}

// Compliance looks up one compliance observation.
func (a *Aggregator) Compliance(catalogID string, key PropertyKey) (compliance.PropertyObservation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	obs, ok := a.compliance[catalogID][key]
	return obs, ok
}

// Vocabulary looks up one vocabulary observation.
func (a *Aggregator) Vocabulary(catalogID string, key PropertyKey) (vocabulary.Observation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	obs, ok := a.vocabulary[catalogID][key]
	return obs, ok
}

// CatalogIDs returns the sorted union of catalog identifiers with at
// least one recorded observation.
func (a *Aggregator) CatalogIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]struct{}, len(a.compliance))
	for id := range a.compliance {
		seen[id] = struct{}{}
	}
	for id := range a.vocabulary {
		seen[id] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
