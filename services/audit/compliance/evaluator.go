// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compliance measures property presence against the profile.
//
// For a (property, entity class) pair the evaluator counts, per catalog,
// how many entities of the relevant reference set carry at least one value
// for the property. A catalog whose relevant set is empty yields the N/A
// sentinel (totalEntities == 0), which is never conflated with an
// applicable-but-absent property (entitiesWithProperty == 0 under
// totalEntities > 0).
package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/sparql"
)

// Tier status thresholds, applied to the mandatory-tier average rate of a
// class. Used by reporting only.
const (
	PassThreshold = 0.8
	WarnThreshold = 0.5
)

// StatusFor maps a mandatory-tier average rate to PASS/WARN/FAIL.
func StatusFor(rate float64) string {
	switch {
	case rate >= PassThreshold:
		return "PASS"
	case rate >= WarnThreshold:
		return "WARN"
	default:
		return "FAIL"
	}
}

// PropertyObservation is the presence measurement of one property over one
// catalog's relevant entity set. Instances are created once per
// (catalog, property, class) triple and never mutated.
type PropertyObservation struct {
	// EntitiesWithProperty counts entities carrying at least one value.
	EntitiesWithProperty int `json:"entities_with_property"`

	// TotalEntities is the relevant set's size. Zero is the N/A sentinel:
	// the check had no applicable entities.
	TotalEntities int `json:"total_entities"`
}

// Applicable reports whether the observation has any applicable entities.
func (o PropertyObservation) Applicable() bool { return o.TotalEntities > 0 }

// Rate returns the compliance rate. The boolean is false for the N/A
// sentinel, where the rate is undefined.
func (o PropertyObservation) Rate() (float64, bool) {
	if o.TotalEntities == 0 {
		return 0, false
	}
	return float64(o.EntitiesWithProperty) / float64(o.TotalEntities), true
}

func presenceQuery(propertyURI string, entities []string) string {
	return fmt.Sprintf(`SELECT (COUNT(DISTINCT ?entity) AS ?count) WHERE {
    VALUES ?entity { %s }
    ?entity <%s> ?value .
}`, sparql.ValuesClause(entities), propertyURI)
}

// Evaluator measures property presence across the resolved graph.
type Evaluator struct {
	querier sparql.Querier
	logger  *slog.Logger
}

// NewEvaluator creates an Evaluator over the given query client.
func NewEvaluator(querier sparql.Querier, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{querier: querier, logger: logger}
}

// Evaluate measures one (property, class) pair across all catalogs and
// returns an observation per catalog identifier.
//
// Catalogs with an empty relevant set get the N/A sentinel without a
// query. A query failure yields entitiesWithProperty == 0 for that catalog
// only: unknown presence is surfaced as zero, and other catalogs'
// results are unaffected.
func (e *Evaluator) Evaluate(ctx context.Context, propertyURI string, class catalog.EntityClass, graph *catalog.Graph) map[string]PropertyObservation {
	out := make(map[string]PropertyObservation, graph.Len())

	for _, id := range graph.IDs() {
		cat := graph.Catalogs[id]
		entities := cat.EntitySet(class)

		if len(entities) == 0 {
			out[id] = PropertyObservation{}
			continue
		}

		out[id] = e.evaluateOne(ctx, propertyURI, entities, id)
	}
	return out
}

// evaluateOne counts presence among an enumerated, non-empty entity set.
func (e *Evaluator) evaluateOne(ctx context.Context, propertyURI string, entities []string, catalogID string) PropertyObservation {
	obs := PropertyObservation{TotalEntities: len(entities)}

	rs, err := e.querier.Select(ctx, presenceQuery(propertyURI, entities))
	if err != nil {
		e.logger.Warn("presence query failed",
			"catalog", catalogID,
			"property", propertyURI,
			"error", err.Error(),
		)
		return obs
	}
	if rs.Empty() {
		return obs
	}

	count, err := rs.Rows[0].Int("count")
	if err != nil {
		e.logger.Warn("presence count unreadable",
			"catalog", catalogID,
			"property", propertyURI,
			"error", err.Error(),
		)
		return obs
	}

	// An endpoint bug could over-count; the observation invariant
	// entitiesWithProperty <= totalEntities wins.
	if count > obs.TotalEntities {
		e.logger.Warn("presence count exceeds entity set size, clamping",
			"catalog", catalogID,
			"property", propertyURI,
			"count", count,
			"total", obs.TotalEntities,
		)
		count = obs.TotalEntities
	}

	obs.EntitiesWithProperty = count
	return obs
}
