// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/openmobility/dcatlens/pkg/ux"
	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/compliance"
	"github.com/openmobility/dcatlens/services/audit/profile"
)

// propColWidth is the fixed width of the property column in org tables.
const propColWidth = 40

// extendedTopValues caps how many values the extended report lists per
// property.
const extendedTopValues = 10

// Renderer writes the human-readable report: compliance summary, the
// property analysis table, the vocabulary summary table, and the extended
// vocabulary analysis. Tables are org-mode formatted so reports paste
// cleanly into notes.
type Renderer struct {
	w io.Writer
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Render writes all report sections.
func (r *Renderer) Render(rep *Report) {
	r.renderComplianceSummary(rep)
	r.renderPropertyTable(rep)
	r.renderVocabularyTable(rep)
	r.renderExtendedVocabulary(rep)
	r.renderWarnings(rep)
}

// RenderCompliance writes the compliance sections only.
func (r *Renderer) RenderCompliance(rep *Report) {
	r.renderComplianceSummary(rep)
	r.renderPropertyTable(rep)
	r.renderWarnings(rep)
}

// RenderVocabulary writes the vocabulary sections only.
func (r *Renderer) RenderVocabulary(rep *Report) {
	r.renderVocabularyTable(rep)
	r.renderExtendedVocabulary(rep)
	r.renderWarnings(rep)
}

func (r *Renderer) banner(title string) {
	fmt.Fprintf(r.w, "\n%s\n", strings.Repeat("=", 100))
	fmt.Fprintln(r.w, ux.Heading(title))
	fmt.Fprintln(r.w, strings.Repeat("=", 100))
}

func (r *Renderer) groupHeading(class catalog.EntityClass) {
	name := class.ShortName() + " Properties"
	fmt.Fprintf(r.w, "\n%s:\n%s\n", ux.Heading(name), strings.Repeat("-", len(name)+1))
}

func (r *Renderer) renderComplianceSummary(rep *Report) {
	r.banner("COMPLIANCE SUMMARY")
	if len(rep.Catalogs) == 0 {
		fmt.Fprintln(r.w, "No compliance data available")
		return
	}

	for _, cat := range rep.Catalogs {
		fmt.Fprintf(r.w, "\n%s\n", cat.ID)

		rateSum := 0.0
		rated := 0
		for _, cls := range cat.Classes {
			if cls.Status == "N/A" {
				fmt.Fprintf(r.w, "  [%s] %s: no applicable entities\n", "N/A", cls.Class)
				continue
			}
			fmt.Fprintf(r.w, "  [%s] %s: %.1f%% mandatory compliance\n",
				ux.Status(cls.Status), cls.Class, cls.MandatoryRate*100)
			rateSum += cls.MandatoryRate
			rated++

			if missing := missingMandatory(cls); len(missing) > 0 {
				fmt.Fprintf(r.w, "    Missing properties: %s\n", strings.Join(missing, ", "))
			}
		}

		if rated > 0 {
			overall := rateSum / float64(rated)
			fmt.Fprintf(r.w, "  [%s] Overall Compliance: %.1f%%\n",
				ux.Status(compliance.StatusFor(overall)), overall*100)
		}
	}
}

// missingMandatory lists short names of mandatory properties absent from
// every applicable entity.
func missingMandatory(cls ClassReport) []string {
	var out []string
	for _, pr := range cls.Properties {
		if pr.Tier != profile.TierMandatory || !pr.Applicable() {
			continue
		}
		if pr.EntitiesWithProperty == 0 {
			out = append(out, profile.ShortName(pr.URI))
		}
	}
	return out
}

func (r *Renderer) renderPropertyTable(rep *Report) {
	r.banner(strings.ToUpper(rep.Profile) + " PROPERTY ANALYSIS")
	if len(rep.Catalogs) == 0 {
		fmt.Fprintln(r.w, "No data available for property table")
		return
	}

	ids := catalogIDs(rep)
	for _, class := range reportClasses(rep) {
		var labels []string
		cellsByRow := make(map[int][]string)
		for _, cat := range rep.Catalogs {
			cls, ok := classReport(cat, class)
			if !ok {
				continue
			}
			for j, pr := range cls.Properties {
				if len(labels) <= j {
					labels = append(labels, fmt.Sprintf("%s (%s)",
						truncate(profile.ShortName(pr.URI), propColWidth-4), pr.Tier.Marker()))
				}
				cell := "N/A"
				if pr.Applicable() {
					cell = fmt.Sprintf("%d/%d", pr.EntitiesWithProperty, pr.TotalEntities)
				}
				cellsByRow[j] = append(cellsByRow[j], cell)
			}
		}
		if len(labels) == 0 {
			continue
		}

		r.groupHeading(class)
		r.orgHeader("Property (M/R/O)", ids)
		for j, label := range labels {
			r.orgRow(label, ids, cellsByRow[j])
		}
	}

	fmt.Fprintln(r.w, ux.Muted("\nLegend:"))
	fmt.Fprintln(r.w, ux.Muted("(M) = Mandatory property"))
	fmt.Fprintln(r.w, ux.Muted("(R) = Recommended property"))
	fmt.Fprintln(r.w, ux.Muted("(O) = Optional property"))
	fmt.Fprintln(r.w, ux.Muted("N/A = No entities of this type in catalog"))
}

func (r *Renderer) renderVocabularyTable(rep *Report) {
	r.banner("CONTROLLED VOCABULARY SUMMARY")
	if len(rep.Catalogs) == 0 {
		fmt.Fprintln(r.w, "No data available for vocabulary table")
		return
	}

	ids := catalogIDs(rep)
	rendered := false
	for _, class := range reportClasses(rep) {
		var labels []string
		cellsByRow := make(map[int][]string)
		for _, cat := range rep.Catalogs {
			cls, ok := classReport(cat, class)
			if !ok {
				continue
			}
			for j, vr := range cls.Vocabulary {
				if len(labels) <= j {
					labels = append(labels, truncate(profile.ShortName(vr.URI), propColWidth))
				}
				cellsByRow[j] = append(cellsByRow[j], vocabCell(vr))
			}
		}
		if len(labels) == 0 {
			continue
		}
		rendered = true

		r.groupHeading(class)
		r.orgHeader("Property", ids)
		for j, label := range labels {
			r.orgRow(label, ids, cellsByRow[j])
		}
	}
	if !rendered {
		fmt.Fprintln(r.w, "No vocabulary properties found")
		return
	}

	fmt.Fprintln(r.w, ux.Muted("\nLegend: Y% (XC) = Y% of entities have property, X unique values, Codelist | "+
		"Y% (XV) = Y% have property, X unique values, Controlled | "+
		"Y% (XF) = Y% have property, X unique values, Free text"))
}

// vocabCell formats one vocabulary summary cell as "Y% (XK)" where K is
// the classification code, or "0% (0)" for skipped/valueless checks.
func vocabCell(vr VocabularyResult) string {
	if !vr.Checked || vr.UniqueValueCount == 0 {
		return "0% (0)"
	}
	pct := 0.0
	if vr.TotalEntities > 0 {
		pct = float64(vr.EntitiesWithProperty) / float64(vr.TotalEntities) * 100
	}
	return fmt.Sprintf("%.0f%% (%d%s)", pct, vr.UniqueValueCount, vr.Kind().Code())
}

func (r *Renderer) renderExtendedVocabulary(rep *Report) {
	r.banner("EXTENDED VOCABULARY ANALYSIS")
	if len(rep.Catalogs) == 0 {
		fmt.Fprintln(r.w, "No data available for extended report")
		return
	}

	for _, class := range reportClasses(rep) {
		headed := false
		for _, cat := range rep.Catalogs {
			cls, ok := classReport(cat, class)
			if !ok {
				continue
			}
			controlled := controlledResults(cls)
			if len(controlled) == 0 {
				continue
			}
			if !headed {
				r.groupHeading(class)
				headed = true
			}

			fmt.Fprintf(r.w, "\n  %s:\n", shortCatalog(cat.ID))
			for _, vr := range controlled {
				kind := "Controlled vocabulary"
				if vr.Kind() == "Codelist" {
					kind = "Codelist (URI-based)"
				}
				fmt.Fprintf(r.w, "    %s (%s):\n", profile.ShortName(vr.URI), kind)

				top := vr.Values
				if len(top) > extendedTopValues {
					top = top[:extendedTopValues]
				}
				for i, v := range top {
					fmt.Fprintf(r.w, "      %2d. %s (used %d times)\n", i+1, truncate(v.Value, 80), v.Count)
				}
				if remaining := len(vr.Values) - extendedTopValues; remaining > 0 {
					fmt.Fprintf(r.w, "      ... and %d more values\n", remaining)
				}
				fmt.Fprintln(r.w)
			}
		}
	}
}

func controlledResults(cls ClassReport) []VocabularyResult {
	var out []VocabularyResult
	for _, vr := range cls.Vocabulary {
		if vr.Checked && vr.Controlled && vr.UniqueValueCount > 0 {
			out = append(out, vr)
		}
	}
	return out
}

func (r *Renderer) renderWarnings(rep *Report) {
	if len(rep.Warnings) == 0 {
		return
	}
	fmt.Fprintf(r.w, "\n%s\n", ux.Heading("Warnings:"))
	for _, w := range rep.Warnings {
		fmt.Fprintf(r.w, "  - %s\n", w)
	}
}

// orgHeader writes an org-mode table header and separator row.
func (r *Renderer) orgHeader(first string, ids []string) {
	fmt.Fprintf(r.w, "| %-*s |", propColWidth, first)
	for _, id := range ids {
		fmt.Fprintf(r.w, " %s |", id)
	}
	fmt.Fprintln(r.w)

	fmt.Fprintf(r.w, "|%s+", strings.Repeat("-", propColWidth+2))
	for _, id := range ids {
		fmt.Fprint(r.w, strings.Repeat("-", len(id)+2), "+")
	}
	fmt.Fprintln(r.w)
}

// orgRow writes one data row; cells are padded to each catalog column.
func (r *Renderer) orgRow(label string, ids []string, cells []string) {
	fmt.Fprintf(r.w, "| %-*s |", propColWidth, label)
	for i, id := range ids {
		cell := "-"
		if i < len(cells) {
			cell = cells[i]
		}
		fmt.Fprintf(r.w, " %-*s |", len(id), cell)
	}
	fmt.Fprintln(r.w)
}

// catalogIDs returns report catalog identifiers in report order.
func catalogIDs(rep *Report) []string {
	ids := make([]string, len(rep.Catalogs))
	for i, cat := range rep.Catalogs {
		ids[i] = cat.ID
	}
	return ids
}

// reportClasses returns the classes present anywhere in the report, in
// canonical order.
func reportClasses(rep *Report) []catalog.EntityClass {
	present := make(map[catalog.EntityClass]bool)
	for _, cat := range rep.Catalogs {
		for _, cls := range cat.Classes {
			present[cls.Class] = true
		}
	}
	var out []catalog.EntityClass
	for _, class := range catalog.AllClasses() {
		if present[class] {
			out = append(out, class)
		}
	}
	return out
}

func classReport(cat CatalogReport, class catalog.EntityClass) (ClassReport, bool) {
	for _, cls := range cat.Classes {
		if cls.Class == class {
			return cls, true
		}
	}
	return ClassReport{}, false
}

// shortCatalog derives a display name from a catalog IRI: the last
// non-trivial path segment, else a 50-char prefix.
func shortCatalog(id string) string {
	parts := strings.Split(id, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if len(parts[i]) > 1 {
			return parts[i]
		}
	}
	return truncate(id, 50)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
