// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sparql

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Term is a single RDF term in a result binding, as defined by the SPARQL 1.1
// Query Results JSON Format.
type Term struct {
	// Type is "uri", "literal", or "bnode".
	Type string `json:"type"`

	// Value is the lexical value of the term.
	Value string `json:"value"`

	// Datatype is the literal datatype IRI, if any.
	Datatype string `json:"datatype,omitempty"`

	// Lang is the literal language tag, if any.
	Lang string `json:"xml:lang,omitempty"`
}

// IsURI reports whether the term is an IRI reference.
func (t Term) IsURI() bool { return t.Type == "uri" }

// Row is one solution mapping: variable name to bound term. Variables left
// unbound by the endpoint (e.g. inside OPTIONAL) are absent from the map.
type Row map[string]Term

// Value returns the bound term for a variable.
func (r Row) Value(name string) (Term, bool) {
	t, ok := r[name]
	return t, ok
}

// URI returns the value of a variable that must be bound to an IRI.
func (r Row) URI(name string) (string, error) {
	t, ok := r[name]
	if !ok {
		return "", fmt.Errorf("%w: variable %q not bound", ErrMalformedResult, name)
	}
	if !t.IsURI() {
		return "", fmt.Errorf("%w: variable %q is %s, expected uri", ErrMalformedResult, name, t.Type)
	}
	return t.Value, nil
}

// Int returns the value of a variable bound to an integer literal, as
// produced by COUNT aggregates.
func (r Row) Int(name string) (int, error) {
	t, ok := r[name]
	if !ok {
		return 0, fmt.Errorf("%w: variable %q not bound", ErrMalformedResult, name)
	}
	n, err := strconv.Atoi(t.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: variable %q value %q is not an integer", ErrMalformedResult, name, t.Value)
	}
	return n, nil
}

// ResultSet is an ordered sequence of solution rows returned by a SELECT
// query.
type ResultSet struct {
	// Vars lists the projected variable names in query order.
	Vars []string

	// Rows holds the solutions in endpoint order.
	Rows []Row
}

// Empty reports whether the result set has no rows.
func (rs *ResultSet) Empty() bool { return len(rs.Rows) == 0 }

// wire types for the SPARQL JSON results document.
type resultsDocument struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results"`
}

// decodeResults parses a SPARQL JSON results document. A response missing
// the results section is reported as ErrMalformedResult; callers treat that
// the same as a transport failure.
func decodeResults(r io.Reader) (*ResultSet, error) {
	var doc resultsDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if doc.Results == nil {
		return nil, fmt.Errorf("%w: missing results section", ErrMalformedResult)
	}

	rs := &ResultSet{
		Vars: doc.Head.Vars,
		Rows: make([]Row, 0, len(doc.Results.Bindings)),
	}
	for _, b := range doc.Results.Bindings {
		rs.Rows = append(rs.Rows, Row(b))
	}
	return rs, nil
}
