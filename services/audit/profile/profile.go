// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package profile loads the property-specification profile: the per-class
// mandatory/recommended/optional property lists the compliance evaluator
// checks, and the per-class property lists the vocabulary classifier
// analyzes.
//
// A default mobilityDCAT-AP profile is embedded in the binary; a user
// profile file can replace it. The profile is injected configuration and
// never changes during a run.
package profile

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openmobility/dcatlens/services/audit/catalog"
)

// MaxProfileFileSize caps profile files at 1MB to prevent memory issues
// from accidental large files.
const MaxProfileFileSize = 1024 * 1024

//go:embed mobilitydcat.yaml
var defaultProfileYAML []byte

// Tier is a property requirement tier.
type Tier string

const (
	TierMandatory   Tier = "mandatory"
	TierRecommended Tier = "recommended"
	TierOptional    Tier = "optional"
)

// Marker returns the single-letter tier marker used in report tables.
func (t Tier) Marker() string {
	switch t {
	case TierMandatory:
		return "M"
	case TierRecommended:
		return "R"
	default:
		return "O"
	}
}

// TierList holds the ordered property lists of one entity class. Order is
// significant only for deterministic report ordering.
type TierList struct {
	Mandatory   []string `yaml:"mandatory" validate:"required,min=1,dive,url"`
	Recommended []string `yaml:"recommended" validate:"omitempty,dive,url"`
	Optional    []string `yaml:"optional" validate:"omitempty,dive,url"`
}

// Property is one profile property with its tier, in report order.
type Property struct {
	URI  string
	Tier Tier
}

// Profile is a parsed, validated property-specification profile.
type Profile struct {
	// Name identifies the profile (e.g. "mobilityDCAT-AP").
	Name string

	classes     map[catalog.EntityClass]TierList
	vocabChecks map[catalog.EntityClass][]string
}

// profileDoc is the YAML wire form; class keys are free-form names
// normalized through catalog.ParseClass.
type profileDoc struct {
	Name             string              `yaml:"name" validate:"required"`
	Classes          map[string]TierList `yaml:"classes" validate:"required,min=1,dive"`
	VocabularyChecks map[string][]string `yaml:"vocabulary_checks" validate:"omitempty,dive,min=1,dive,url"`
}

// Default returns the embedded mobilityDCAT-AP profile.
func Default() (*Profile, error) {
	return parse(defaultProfileYAML)
}

// Load reads and validates a profile from a YAML file.
func Load(path string) (*Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat profile: %w", err)
	}
	if info.Size() > MaxProfileFileSize {
		return nil, fmt.Errorf("profile file %s exceeds %d bytes", path, MaxProfileFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Profile, error) {
	var doc profileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile yaml: %w", err)
	}

	if err := validator.New().Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}

	p := &Profile{
		Name:        doc.Name,
		classes:     make(map[catalog.EntityClass]TierList, len(doc.Classes)),
		vocabChecks: make(map[catalog.EntityClass][]string, len(doc.VocabularyChecks)),
	}

	for name, tiers := range doc.Classes {
		class, err := catalog.ParseClass(name)
		if err != nil {
			return nil, fmt.Errorf("profile classes: %w", err)
		}
		if _, dup := p.classes[class]; dup {
			return nil, fmt.Errorf("profile classes: duplicate entry for %s", class)
		}
		p.classes[class] = tiers
	}

	for name, props := range doc.VocabularyChecks {
		class, err := catalog.ParseClass(name)
		if err != nil {
			return nil, fmt.Errorf("profile vocabulary_checks: %w", err)
		}
		if _, dup := p.vocabChecks[class]; dup {
			return nil, fmt.Errorf("profile vocabulary_checks: duplicate entry for %s", class)
		}
		p.vocabChecks[class] = props
	}

	if err := p.validateSemantics(); err != nil {
		return nil, err
	}
	return p, nil
}

// validateSemantics applies checks the struct validator cannot express.
func (p *Profile) validateSemantics() error {
	for class, tiers := range p.classes {
		seen := make(map[string]struct{})
		for _, list := range [][]string{tiers.Mandatory, tiers.Recommended, tiers.Optional} {
			for _, uri := range list {
				if _, dup := seen[uri]; dup {
					return fmt.Errorf("profile classes: %s lists %s in more than one tier", class, uri)
				}
				seen[uri] = struct{}{}
			}
		}
	}
	return nil
}

// Classes returns the classes the profile covers, in canonical order.
func (p *Profile) Classes() []catalog.EntityClass {
	out := make([]catalog.EntityClass, 0, len(p.classes))
	for _, class := range catalog.AllClasses() {
		if _, ok := p.classes[class]; ok {
			out = append(out, class)
		}
	}
	return out
}

// Tiers returns the tier lists for a class.
func (p *Profile) Tiers(class catalog.EntityClass) (TierList, bool) {
	tiers, ok := p.classes[class]
	return tiers, ok
}

// Properties returns all properties of a class in report order: mandatory,
// then recommended, then optional, preserving list order within each tier.
func (p *Profile) Properties(class catalog.EntityClass) []Property {
	tiers, ok := p.classes[class]
	if !ok {
		return nil
	}

	props := make([]Property, 0,
		len(tiers.Mandatory)+len(tiers.Recommended)+len(tiers.Optional))
	for _, uri := range tiers.Mandatory {
		props = append(props, Property{URI: uri, Tier: TierMandatory})
	}
	for _, uri := range tiers.Recommended {
		props = append(props, Property{URI: uri, Tier: TierRecommended})
	}
	for _, uri := range tiers.Optional {
		props = append(props, Property{URI: uri, Tier: TierOptional})
	}
	return props
}

// VocabularyChecks returns the properties to classify for a class. A class
// may appear in the profile, the vocabulary checks, both, or neither.
func (p *Profile) VocabularyChecks(class catalog.EntityClass) []string {
	return p.vocabChecks[class]
}

// VocabularyClasses returns the classes with vocabulary checks configured,
// in canonical order.
func (p *Profile) VocabularyClasses() []catalog.EntityClass {
	out := make([]catalog.EntityClass, 0, len(p.vocabChecks))
	for _, class := range catalog.AllClasses() {
		if _, ok := p.vocabChecks[class]; ok {
			out = append(out, class)
		}
	}
	return out
}

// ShortName derives a display name for a property URI: the fragment after
// "#" when present, otherwise the last path segment.
func ShortName(uri string) string {
	if i := strings.LastIndex(uri, "#"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	if i := strings.LastIndex(uri, "/"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	return uri
}
