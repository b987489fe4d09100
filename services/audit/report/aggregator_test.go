// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/compliance"
	"github.com/openmobility/dcatlens/services/audit/vocabulary"
)

const (
	aggCatalog = "http://example.org/catalog/1"
	titleURI   = "http://purl.org/dc/terms/title"
)

func TestAggregatorWriteOnce(t *testing.T) {
	agg := NewAggregator()
	key := PropertyKey{Property: titleURI, Class: catalog.ClassDataset}

	require.NoError(t, agg.PutCompliance(aggCatalog, key,
		compliance.PropertyObservation{EntitiesWithProperty: 2, TotalEntities: 3}))

	err := agg.PutCompliance(aggCatalog, key,
		compliance.PropertyObservation{EntitiesWithProperty: 0, TotalEntities: 0})
	require.ErrorIs(t, err, ErrDuplicateObservation)

	// The first write survives the rejected second one.
	obs, ok := agg.Compliance(aggCatalog, key)
	require.True(t, ok)
	assert.Equal(t, 2, obs.EntitiesWithProperty)
}

func TestAggregatorClassIsPartOfKey(t *testing.T) {
	agg := NewAggregator()

	// The same property URI on two classes is two distinct checks.
	dsKey := PropertyKey{Property: titleURI, Class: catalog.ClassDataset}
	distKey := PropertyKey{Property: titleURI, Class: catalog.ClassDistribution}

	require.NoError(t, agg.PutCompliance(aggCatalog, dsKey,
		compliance.PropertyObservation{EntitiesWithProperty: 5, TotalEntities: 5}))
	require.NoError(t, agg.PutCompliance(aggCatalog, distKey,
		compliance.PropertyObservation{EntitiesWithProperty: 1, TotalEntities: 4}))

	dsObs, _ := agg.Compliance(aggCatalog, dsKey)
	distObs, _ := agg.Compliance(aggCatalog, distKey)
	assert.Equal(t, 5, dsObs.EntitiesWithProperty)
	assert.Equal(t, 1, distObs.EntitiesWithProperty)
}

func TestAggregatorVocabularyIndependentOfCompliance(t *testing.T) {
	agg := NewAggregator()
	key := PropertyKey{Property: titleURI, Class: catalog.ClassDataset}

	// Same key in both stores is fine; the stores are separate surfaces.
	require.NoError(t, agg.PutCompliance(aggCatalog, key, compliance.PropertyObservation{TotalEntities: 1}))
	require.NoError(t, agg.PutVocabulary(aggCatalog, key, vocabulary.Observation{TotalEntities: 1}))

	err := agg.PutVocabulary(aggCatalog, key, vocabulary.Observation{})
	assert.ErrorIs(t, err, ErrDuplicateObservation)
}

func TestAggregatorConcurrentDuplicateWriters(t *testing.T) {
	agg := NewAggregator()
	key := PropertyKey{Property: titleURI, Class: catalog.ClassDataset}

	const writers = 16
	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if agg.PutCompliance(aggCatalog, key, compliance.PropertyObservation{TotalEntities: 1}) == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly one writer wins the test-and-set.
	assert.Equal(t, int32(1), successes.Load())
}

func TestAggregatorCatalogIDsSorted(t *testing.T) {
	agg := NewAggregator()
	key := PropertyKey{Property: titleURI, Class: catalog.ClassDataset}

	require.NoError(t, agg.PutCompliance("http://example.org/b", key, compliance.PropertyObservation{}))
	require.NoError(t, agg.PutVocabulary("http://example.org/a", key, vocabulary.Observation{}))

	assert.Equal(t, []string{"http://example.org/a", "http://example.org/b"}, agg.CatalogIDs())
}
