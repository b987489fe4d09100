// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/openmobility/dcatlens/services/audit/sparql"
)

var tracer = otel.Tracer("audit.catalog")

const catalogDiscoveryQuery = `PREFIX dcat: <http://www.w3.org/ns/dcat#>
SELECT DISTINCT ?catalog WHERE {
    ?catalog a dcat:Catalog .
}`

// Publishers in the wild link datasets differently: the standard
// dcat:dataset relation and a dcat:Dataset predicate variant. Both shapes
// are unioned; the ?dataset type constraint keeps stray objects out.
func datasetQuery(catalogIRI string) string {
	return fmt.Sprintf(`PREFIX dcat: <http://www.w3.org/ns/dcat#>
SELECT DISTINCT ?dataset ?distribution WHERE {
    <%[1]s> a dcat:Catalog .
    {
        <%[1]s> dcat:dataset ?dataset .
    } UNION {
        <%[1]s> dcat:Dataset ?dataset .
    }
    ?dataset a dcat:Dataset .
    OPTIONAL {
        ?dataset dcat:distribution ?distribution .
        ?distribution a dcat:Distribution .
    }
}`, catalogIRI)
}

func recordQuery(catalogIRI string) string {
	return fmt.Sprintf(`PREFIX dcat: <http://www.w3.org/ns/dcat#>
SELECT DISTINCT ?record WHERE {
    <%s> dcat:record ?record .
    ?record a dcat:CatalogRecord .
}`, catalogIRI)
}

// ResolverConfig configures graph resolution.
type ResolverConfig struct {
	// Workers bounds concurrent per-catalog resolution.
	// Default: 4
	Workers int

	// Logger for resolution progress and warnings.
	// Default: slog.Default()
	Logger *slog.Logger
}

// applyDefaults fills in zero values with defaults.
func (c *ResolverConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Resolver discovers catalogs and resolves their entity reference sets.
//
// # Thread Safety
//
// A Resolver is safe for concurrent use; each Resolve call builds an
// independent graph.
type Resolver struct {
	querier sparql.Querier
	config  ResolverConfig
}

// NewResolver creates a Resolver over the given query client.
func NewResolver(querier sparql.Querier, config ResolverConfig) *Resolver {
	config.applyDefaults()
	return &Resolver{querier: querier, config: config}
}

// Resolve builds the entity graph for one audit run.
//
// Container discovery failure aborts the run: nothing is analyzable
// without at least one catalog, so the error is returned and the graph is
// nil. Per-catalog dataset or record query failures never abort the pass;
// the affected set stays empty and a warning is recorded on the graph.
//
// Per-catalog resolution runs on a bounded worker pool; each worker only
// writes its own catalog's sets, so no locking beyond the warning list is
// needed.
func (r *Resolver) Resolve(ctx context.Context) (*Graph, error) {
	ctx, span := tracer.Start(ctx, "catalog.Resolve")
	defer span.End()

	rs, err := r.querier.Select(ctx, catalogDiscoveryQuery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("catalog discovery: %w", err)
	}

	graph := &Graph{Catalogs: make(map[string]*Catalog)}
	for _, row := range rs.Rows {
		iri, err := row.URI("catalog")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("catalog discovery: %w", err)
		}
		if _, seen := graph.Catalogs[iri]; seen {
			continue
		}
		graph.Catalogs[iri] = &Catalog{
			ID:       iri,
			Catalogs: []string{iri},
		}
	}

	span.SetAttributes(attribute.Int("catalogs", graph.Len()))
	if graph.Len() == 0 {
		return graph, nil
	}

	var warnMu sync.Mutex
	warn := func(msg string) {
		warnMu.Lock()
		graph.Warnings = append(graph.Warnings, msg)
		warnMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for _, cat := range graph.Catalogs {
		cat := cat
		g.Go(func() error {
			r.resolveCatalog(gctx, cat, warn)
			return nil
		})
	}
	// Workers never return errors; per-catalog failures become warnings.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog resolution: %w", err)
	}

	r.config.Logger.Info("entity graph resolved",
		"catalogs", graph.Len(),
		"warnings", len(graph.Warnings),
	)
	return graph, nil
}

// resolveCatalog fills one catalog's dataset, distribution, and record
// sets. Dataset and distribution resolution share a single query so the
// distribution set is complete as soon as the dataset set is.
func (r *Resolver) resolveCatalog(ctx context.Context, cat *Catalog, warn func(string)) {
	datasets := stringSet{}
	distributions := stringSet{}

	rs, err := r.querier.Select(ctx, datasetQuery(cat.ID))
	if err != nil {
		msg := fmt.Sprintf("dataset resolution failed for %s: %v", cat.ID, err)
		r.config.Logger.Warn("dataset resolution failed", "catalog", cat.ID, "error", err.Error())
		warn(msg)
	} else {
		for _, row := range rs.Rows {
			ds, err := row.URI("dataset")
			if err != nil {
				continue
			}
			datasets.add(ds)

			// distribution is OPTIONAL; absent bindings are normal.
			if dist, ok := row.Value("distribution"); ok && dist.IsURI() {
				distributions.add(dist.Value)
			}
		}
	}

	records := stringSet{}
	rs, err = r.querier.Select(ctx, recordQuery(cat.ID))
	if err != nil {
		msg := fmt.Sprintf("record resolution failed for %s: %v", cat.ID, err)
		r.config.Logger.Warn("record resolution failed", "catalog", cat.ID, "error", err.Error())
		warn(msg)
	} else {
		for _, row := range rs.Rows {
			rec, err := row.URI("record")
			if err != nil {
				continue
			}
			records.add(rec)
		}
	}

	cat.Datasets = datasets.sorted()
	cat.Distributions = distributions.sorted()
	cat.Records = records.sorted()
}
