// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vocabulary classifies how properties are valued: controlled
// vocabulary, URI-based codelist, or free text.
//
// The classification is a heuristic over observed value distributions, not
// a vocabulary registry lookup. It tolerates false positives and negatives
// and is not a validation rule.
package vocabulary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/sparql"
)

// Decision-rule constants (§ controlled-vocabulary heuristic).
const (
	// smallSetMax is the distinct-value count at or below which a property
	// is inherently controlled, regardless of distribution.
	smallSetMax = 5

	// topHeavyShare is the usage share the top smallSetMax values must
	// exceed for a long-tailed property to count as controlled.
	topHeavyShare = 0.8

	// uriControlledShare is the URI-shaped share of distinct values above
	// which a property counts as controlled.
	uriControlledShare = 0.7

	// codelistShare is the URI-shaped share above which a controlled
	// property is labeled a codelist.
	codelistShare = 0.5
)

// ValueObservation is one distinct value taken by a property across the
// relevant entity set, and how many entities used it.
type ValueObservation struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Kind is the display label of a classification.
type Kind string

const (
	KindNoValues   Kind = "No Values"
	KindCodelist   Kind = "Codelist"
	KindControlled Kind = "Controlled"
	KindFreeText   Kind = "Free text"
)

// Code returns the single-letter marker used in summary tables.
func (k Kind) Code() string {
	switch k {
	case KindCodelist:
		return "C"
	case KindControlled:
		return "V"
	default:
		return "F"
	}
}

// Observation is the vocabulary measurement of one property over one
// catalog's relevant entity set. Instances are created once per
// (catalog, property, class) triple and never mutated.
type Observation struct {
	// TotalEntities is the relevant set's size.
	TotalEntities int `json:"total_entities"`

	// EntitiesWithProperty counts distinct entities with any value. It can
	// differ from the summed value counts when one entity holds multiple
	// values.
	EntitiesWithProperty int `json:"entities_with_property"`

	// Values holds the distinct values sorted by descending usage count,
	// ties broken by value ascending for determinism.
	Values []ValueObservation `json:"values_found"`

	// UniqueValueCount is len(Values).
	UniqueValueCount int `json:"unique_values"`

	// Controlled is the decision-rule outcome.
	Controlled bool `json:"has_controlled_vocab"`
}

// Kind derives the display label. The codelist sub-classification is
// display-only: a controlled property whose distinct values are more than
// half URI-shaped is a codelist, otherwise a controlled vocabulary of
// literal values.
func (o Observation) Kind() Kind {
	switch {
	case o.UniqueValueCount == 0:
		return KindNoValues
	case !o.Controlled:
		return KindFreeText
	case uriShare(o.Values) > codelistShare:
		return KindCodelist
	default:
		return KindControlled
	}
}

// isURIShaped reports whether a value lexically begins with a URI scheme
// prefix. Stricter than a bare "http" prefix so literals like "httpFoo"
// don't count.
func isURIShaped(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

// uriShare is the fraction of distinct values that are URI-shaped.
func uriShare(values []ValueObservation) float64 {
	if len(values) == 0 {
		return 0
	}
	uris := 0
	for _, v := range values {
		if isURIShaped(v.Value) {
			uris++
		}
	}
	return float64(uris) / float64(len(values))
}

// classify applies the controlled-vocabulary decision rule in exact order;
// the first matching rule wins. Values must already be sorted by
// descending usage.
func classify(values []ValueObservation) bool {
	if len(values) == 0 {
		return false
	}
	if len(values) <= smallSetMax {
		return true
	}

	totalUsage := 0
	for _, v := range values {
		totalUsage += v.Count
	}
	topUsage := 0
	for _, v := range values[:smallSetMax] {
		topUsage += v.Count
	}
	if totalUsage > 0 && float64(topUsage)/float64(totalUsage) > topHeavyShare {
		return true
	}

	return uriShare(values) > uriControlledShare
}

func valuesQuery(propertyURI string, entities []string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?value (COUNT(?entity) AS ?count) WHERE {
    VALUES ?entity { %s }
    ?entity <%s> ?value .
}
GROUP BY ?value
ORDER BY DESC(?count)`, sparql.ValuesClause(entities), propertyURI)
}

func withPropertyQuery(propertyURI string, entities []string) string {
	return fmt.Sprintf(`SELECT (COUNT(DISTINCT ?entity) AS ?withProperty) WHERE {
    VALUES ?entity { %s }
    ?entity <%s> ?value .
}`, sparql.ValuesClause(entities), propertyURI)
}

// Classifier measures value distributions across the resolved graph.
type Classifier struct {
	querier sparql.Querier
	logger  *slog.Logger
}

// NewClassifier creates a Classifier over the given query client.
func NewClassifier(querier sparql.Querier, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{querier: querier, logger: logger}
}

// Classify measures one (property, class) pair across all catalogs.
//
// Catalogs with an empty relevant entity set are skipped entirely, with no
// observation emitted. That is deliberately different from compliance
// evaluation's N/A sentinel: "not analyzed" and "not applicable" stay
// distinct surfaces.
func (c *Classifier) Classify(ctx context.Context, propertyURI string, class catalog.EntityClass, graph *catalog.Graph) map[string]Observation {
	out := make(map[string]Observation)

	for _, id := range graph.IDs() {
		cat := graph.Catalogs[id]
		entities := cat.EntitySet(class)
		if len(entities) == 0 {
			continue
		}

		obs, ok := c.classifyOne(ctx, propertyURI, entities, id)
		if ok {
			out[id] = obs
		}
	}
	return out
}

// classifyOne runs the value-distribution and entity-count queries for one
// catalog. The value query is required; when it fails no observation is
// emitted. A failed count query degrades to zero entities-with-property.
func (c *Classifier) classifyOne(ctx context.Context, propertyURI string, entities []string, catalogID string) (Observation, bool) {
	rs, err := c.querier.Select(ctx, valuesQuery(propertyURI, entities))
	if err != nil {
		c.logger.Warn("value distribution query failed",
			"catalog", catalogID,
			"property", propertyURI,
			"error", err.Error(),
		)
		return Observation{}, false
	}

	values := make([]ValueObservation, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		term, ok := row.Value("value")
		if !ok {
			continue
		}
		count, err := row.Int("count")
		if err != nil || count < 1 {
			continue
		}
		values = append(values, ValueObservation{Value: term.Value, Count: count})
	}

	// Endpoint ordering is not trusted for ties; re-sort for determinism.
	sort.SliceStable(values, func(i, j int) bool {
		if values[i].Count != values[j].Count {
			return values[i].Count > values[j].Count
		}
		return values[i].Value < values[j].Value
	})

	obs := Observation{
		TotalEntities:    len(entities),
		Values:           values,
		UniqueValueCount: len(values),
		Controlled:       classify(values),
	}

	crs, err := c.querier.Select(ctx, withPropertyQuery(propertyURI, entities))
	if err != nil {
		c.logger.Warn("entity count query failed",
			"catalog", catalogID,
			"property", propertyURI,
			"error", err.Error(),
		)
		return obs, true
	}
	if !crs.Empty() {
		if n, err := crs.Rows[0].Int("withProperty"); err == nil {
			if n > obs.TotalEntities {
				n = obs.TotalEntities
			}
			obs.EntitiesWithProperty = n
		}
	}
	return obs, true
}
