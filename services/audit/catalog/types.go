// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog resolves the DCAT entity graph from a SPARQL endpoint.
//
// A resolved graph maps each discovered dcat:Catalog to the identifiers of
// its datasets, distributions, and catalog records. Reference sets are
// deduplicated, sorted, and immutable once resolution completes; the rest
// of the audit run only reads them.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// EntityClass is the categorical role of an entity. It selects both the
// property-profile tier lists and the reference set that applies during
// analysis.
type EntityClass string

const (
	ClassCatalog      EntityClass = "dcat:Catalog"
	ClassDataset      EntityClass = "dcat:Dataset"
	ClassDistribution EntityClass = "dcat:Distribution"
	ClassRecord       EntityClass = "dcat:CatalogRecord"
)

// AllClasses returns the entity classes in canonical report order.
func AllClasses() []EntityClass {
	return []EntityClass{ClassCatalog, ClassDataset, ClassDistribution, ClassRecord}
}

// Valid reports whether the class is one of the four known DCAT classes.
func (c EntityClass) Valid() bool {
	switch c {
	case ClassCatalog, ClassDataset, ClassDistribution, ClassRecord:
		return true
	}
	return false
}

// ShortName returns the class name without the dcat: prefix.
func (c EntityClass) ShortName() string {
	return strings.TrimPrefix(string(c), "dcat:")
}

// ParseClass maps a class name to an EntityClass. It accepts the canonical
// dcat:-prefixed names as well as the plural set names used by older
// vocabulary-check configurations ("catalogs", "datasets", ...).
func ParseClass(name string) (EntityClass, error) {
	switch name {
	case string(ClassCatalog), "catalogs", "catalog":
		return ClassCatalog, nil
	case string(ClassDataset), "datasets", "dataset":
		return ClassDataset, nil
	case string(ClassDistribution), "distributions", "distribution":
		return ClassDistribution, nil
	case string(ClassRecord), "records", "record":
		return ClassRecord, nil
	}
	return "", fmt.Errorf("unknown entity class %q", name)
}

// Catalog is one resolved container entity and its reference sets. The
// sets hold entity identifiers (graph edges, not embedded entities); a
// catalog with an empty set of some kind is valid and fully resolved.
type Catalog struct {
	// ID is the catalog's IRI.
	ID string

	// Catalogs is the catalog-class entity set: the catalog itself.
	Catalogs []string

	// Datasets are dataset IRIs reachable via either tolerated link shape.
	Datasets []string

	// Distributions are distribution IRIs joined through the datasets.
	Distributions []string

	// Records are dcat:CatalogRecord IRIs linked via dcat:record.
	Records []string
}

// EntitySet returns the reference set relevant to the given class.
func (c *Catalog) EntitySet(class EntityClass) []string {
	switch class {
	case ClassCatalog:
		return c.Catalogs
	case ClassDataset:
		return c.Datasets
	case ClassDistribution:
		return c.Distributions
	case ClassRecord:
		return c.Records
	default:
		return nil
	}
}

// Graph is the resolved entity graph for one audit run.
type Graph struct {
	// Catalogs maps catalog IRI to its resolved reference sets.
	Catalogs map[string]*Catalog

	// Warnings records per-catalog resolution failures that did not abort
	// the run (the affected set was left empty).
	Warnings []string
}

// IDs returns the catalog identifiers in sorted order for deterministic
// iteration and reporting.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Catalogs))
	for id := range g.Catalogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of resolved catalogs.
func (g *Graph) Len() int { return len(g.Catalogs) }

// stringSet accumulates identifiers with set semantics; insertion order is
// irrelevant because sorted() produces the final slice.
type stringSet map[string]struct{}

func (s stringSet) add(v string) { s[v] = struct{}{} }

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
