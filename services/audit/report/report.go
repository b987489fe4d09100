// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/compliance"
	"github.com/openmobility/dcatlens/services/audit/profile"
	"github.com/openmobility/dcatlens/services/audit/vocabulary"
)

// Report is the assembled, presentation-ready view of one audit run. It
// is ordered deterministically: catalogs sorted by identifier, classes in
// canonical order, properties in profile order.
type Report struct {
	RunID       string          `json:"run_id"`
	Endpoint    string          `json:"endpoint"`
	Profile     string          `json:"profile"`
	GeneratedAt time.Time       `json:"generated_at"`
	Warnings    []string        `json:"warnings,omitempty"`
	Catalogs    []CatalogReport `json:"catalogs"`
}

// CatalogReport holds one catalog's results across all classes.
type CatalogReport struct {
	ID      string        `json:"id"`
	Classes []ClassReport `json:"classes"`
}

// ClassReport holds one entity class's results within a catalog.
//
// Status is PASS/WARN/FAIL from the mandatory-tier average compliance
// rate, or "N/A" when no mandatory property was applicable.
type ClassReport struct {
	Class         catalog.EntityClass `json:"class"`
	Status        string              `json:"status"`
	MandatoryRate float64             `json:"mandatory_rate"`
	Properties    []PropertyResult    `json:"properties"`
	Vocabulary    []VocabularyResult  `json:"vocabulary,omitempty"`
}

// PropertyResult pairs a profile property with its compliance observation.
type PropertyResult struct {
	URI  string       `json:"uri"`
	Tier profile.Tier `json:"tier"`
	compliance.PropertyObservation
}

// VocabularyResult pairs a checked property with its vocabulary
// observation. Checked is false when the catalog was skipped for this
// property (empty relevant entity set).
type VocabularyResult struct {
	URI     string `json:"uri"`
	Checked bool   `json:"checked"`
	vocabulary.Observation
}

// Build assembles a Report from the aggregator in deterministic order.
func Build(runID, endpoint string, p *profile.Profile, agg *Aggregator, warnings []string, generatedAt time.Time) *Report {
	rep := &Report{
		RunID:       runID,
		Endpoint:    endpoint,
		Profile:     p.Name,
		GeneratedAt: generatedAt,
		Warnings:    warnings,
	}

	for _, id := range agg.CatalogIDs() {
		cr := CatalogReport{ID: id}
		for _, class := range catalog.AllClasses() {
			props := p.Properties(class)
			checks := p.VocabularyChecks(class)
			if len(props) == 0 && len(checks) == 0 {
				continue
			}
			cr.Classes = append(cr.Classes, buildClass(agg, id, class, props, checks))
		}
		rep.Catalogs = append(rep.Catalogs, cr)
	}
	return rep
}

func buildClass(agg *Aggregator, catalogID string, class catalog.EntityClass, props []profile.Property, checks []string) ClassReport {
	cls := ClassReport{Class: class}

	rateSum := 0.0
	rated := 0
	for _, prop := range props {
		obs, _ := agg.Compliance(catalogID, PropertyKey{Property: prop.URI, Class: class})
		cls.Properties = append(cls.Properties, PropertyResult{
			URI:                 prop.URI,
			Tier:                prop.Tier,
			PropertyObservation: obs,
		})

		if prop.Tier != profile.TierMandatory {
			continue
		}
		if rate, ok := obs.Rate(); ok {
			rateSum += rate
			rated++
		}
	}

	if rated > 0 {
		cls.MandatoryRate = rateSum / float64(rated)
		cls.Status = compliance.StatusFor(cls.MandatoryRate)
	} else {
		cls.Status = "N/A"
	}

	for _, uri := range checks {
		obs, ok := agg.Vocabulary(catalogID, PropertyKey{Property: uri, Class: class})
		cls.Vocabulary = append(cls.Vocabulary, VocabularyResult{
			URI:         uri,
			Checked:     ok,
			Observation: obs,
		})
	}
	return cls
}

// ExportJSON writes the report as indented JSON.
func ExportJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
