// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vocabulary

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/sparql"
)

type queryFunc func(ctx context.Context, query string) (*sparql.ResultSet, error)

func (f queryFunc) Select(ctx context.Context, query string) (*sparql.ResultSet, error) {
	return f(ctx, query)
}

const (
	formatProp = "http://purl.org/dc/terms/format"
	catID      = "http://example.org/catalog/main"
)

func valueRows(pairs ...any) *sparql.ResultSet {
	rs := &sparql.ResultSet{Vars: []string{"value", "count"}}
	for i := 0; i < len(pairs); i += 2 {
		rs.Rows = append(rs.Rows, sparql.Row{
			"value": sparql.Term{Type: "literal", Value: pairs[i].(string)},
			"count": sparql.Term{Type: "literal", Value: fmt.Sprintf("%d", pairs[i+1].(int))},
		})
	}
	return rs
}

func countRow(n int) *sparql.ResultSet {
	return &sparql.ResultSet{
		Vars: []string{"withProperty"},
		Rows: []sparql.Row{
			{"withProperty": sparql.Term{Type: "literal", Value: fmt.Sprintf("%d", n)}},
		},
	}
}

func graphWithDatasets(n int) *catalog.Graph {
	cat := &catalog.Catalog{ID: catID, Catalogs: []string{catID}}
	for i := 0; i < n; i++ {
		cat.Datasets = append(cat.Datasets, fmt.Sprintf("http://example.org/dataset/%d", i))
	}
	return &catalog.Graph{Catalogs: map[string]*catalog.Catalog{catID: cat}}
}

// fake returns a querier answering the value-distribution query with
// values and the entity-count query with withProperty.
func fake(values *sparql.ResultSet, withProperty int) queryFunc {
	return func(ctx context.Context, query string) (*sparql.ResultSet, error) {
		if strings.Contains(query, "GROUP BY") {
			return values, nil
		}
		return countRow(withProperty), nil
	}
}

func TestClassifyDecisionRule(t *testing.T) {
	tests := []struct {
		name   string
		values []ValueObservation
		want   bool
	}{
		{"no values", nil, false},
		{"exactly five distinct values", []ValueObservation{
			{"a", 4}, {"b", 3}, {"c", 2}, {"d", 1}, {"e", 1},
		}, true},
		{"six values with dominant top five", []ValueObservation{
			// Top five carry 90 of 100 uses.
			{"a", 40}, {"b", 20}, {"c", 15}, {"d", 10}, {"e", 5}, {"f", 10},
		}, true},
		{"six flat literal values", []ValueObservation{
			// Top five carry 60% of usage and nothing is URI-shaped.
			{"a", 12}, {"b", 12}, {"c", 12}, {"d", 12}, {"e", 12}, {"f", 40},
		}, false},
		{"eight values all URIs", []ValueObservation{
			{"http://vocab.example/1", 3}, {"http://vocab.example/2", 3},
			{"http://vocab.example/3", 3}, {"http://vocab.example/4", 3},
			{"http://vocab.example/5", 3}, {"http://vocab.example/6", 3},
			{"http://vocab.example/7", 3}, {"https://vocab.example/8", 3},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.values))
		})
	}
}

func TestClassifyBuildsObservation(t *testing.T) {
	values := valueRows("csv", 5, "json", 3, "xml", 1)
	obs := NewClassifier(fake(values, 7), nil).
		Classify(context.Background(), formatProp, catalog.ClassDataset, graphWithDatasets(8))

	require.Contains(t, obs, catID)
	got := obs[catID]
	assert.Equal(t, 8, got.TotalEntities)
	assert.Equal(t, 7, got.EntitiesWithProperty)
	assert.Equal(t, 3, got.UniqueValueCount)
	assert.True(t, got.Controlled)
	assert.Equal(t, []ValueObservation{
		{"csv", 5}, {"json", 3}, {"xml", 1},
	}, got.Values)
}

func TestClassifyValueOrderingDeterministic(t *testing.T) {
	// Endpoint returns tied counts in arbitrary order.
	values := valueRows("zeta", 2, "alpha", 2, "beta", 5)
	obs := NewClassifier(fake(values, 5), nil).
		Classify(context.Background(), formatProp, catalog.ClassDataset, graphWithDatasets(5))

	assert.Equal(t, []ValueObservation{
		{"beta", 5}, {"alpha", 2}, {"zeta", 2},
	}, obs[catID].Values)
}

func TestClassifySkipsEmptyEntitySets(t *testing.T) {
	queried := false
	q := queryFunc(func(ctx context.Context, query string) (*sparql.ResultSet, error) {
		queried = true
		return valueRows(), nil
	})

	graph := &catalog.Graph{Catalogs: map[string]*catalog.Catalog{
		catID: {ID: catID, Catalogs: []string{catID}},
	}}
	obs := NewClassifier(q, nil).
		Classify(context.Background(), formatProp, catalog.ClassDataset, graph)

	// No observation, not an empty one; nothing was queried either.
	assert.Empty(t, obs)
	assert.False(t, queried)
}

func TestClassifyNoValuesIsFreeTextObservation(t *testing.T) {
	obs := NewClassifier(fake(valueRows(), 0), nil).
		Classify(context.Background(), formatProp, catalog.ClassDataset, graphWithDatasets(3))

	require.Contains(t, obs, catID)
	got := obs[catID]
	assert.False(t, got.Controlled)
	assert.Zero(t, got.UniqueValueCount)
	assert.Equal(t, KindNoValues, got.Kind())
}

func TestClassifyValueQueryFailureSkipsCatalog(t *testing.T) {
	q := queryFunc(func(ctx context.Context, query string) (*sparql.ResultSet, error) {
		if strings.Contains(query, "GROUP BY") {
			return nil, sparql.ErrEndpointUnavailable
		}
		return countRow(1), nil
	})

	obs := NewClassifier(q, nil).
		Classify(context.Background(), formatProp, catalog.ClassDataset, graphWithDatasets(3))
	assert.Empty(t, obs)
}

func TestClassifyCountQueryFailureDegrades(t *testing.T) {
	q := queryFunc(func(ctx context.Context, query string) (*sparql.ResultSet, error) {
		if strings.Contains(query, "GROUP BY") {
			return valueRows("csv", 2), nil
		}
		return nil, sparql.ErrEndpointUnavailable
	})

	obs := NewClassifier(q, nil).
		Classify(context.Background(), formatProp, catalog.ClassDataset, graphWithDatasets(3))

	require.Contains(t, obs, catID)
	assert.Equal(t, 0, obs[catID].EntitiesWithProperty)
	assert.Equal(t, 1, obs[catID].UniqueValueCount)
}

func TestObservationKind(t *testing.T) {
	uriVals := []ValueObservation{
		{"http://vocab.example/a", 1}, {"http://vocab.example/b", 1},
	}
	litVals := []ValueObservation{{"csv", 1}, {"json", 1}}

	tests := []struct {
		name string
		obs  Observation
		want Kind
	}{
		{"no values", Observation{}, KindNoValues},
		{"free text", Observation{UniqueValueCount: 9, Controlled: false,
			Values: []ValueObservation{{"x", 1}}}, KindFreeText},
		{"codelist", Observation{UniqueValueCount: 2, Controlled: true,
			Values: uriVals}, KindCodelist},
		{"controlled literals", Observation{UniqueValueCount: 2, Controlled: true,
			Values: litVals}, KindControlled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.obs.Kind())
		})
	}
}

func TestIsURIShaped(t *testing.T) {
	assert.True(t, isURIShaped("http://vocab.example/a"))
	assert.True(t, isURIShaped("https://vocab.example/a"))
	assert.False(t, isURIShaped("httpFoo"))
	assert.False(t, isURIShaped("urn:uuid:abc"))
}
