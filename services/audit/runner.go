// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit orchestrates one audit run: resolve the entity graph,
// evaluate compliance for every profile property, classify vocabulary
// usage for every configured check, and assemble the report.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/openmobility/dcatlens/services/audit/catalog"
	"github.com/openmobility/dcatlens/services/audit/compliance"
	"github.com/openmobility/dcatlens/services/audit/profile"
	"github.com/openmobility/dcatlens/services/audit/report"
	"github.com/openmobility/dcatlens/services/audit/sparql"
	"github.com/openmobility/dcatlens/services/audit/vocabulary"
)

var tracer = otel.Tracer("audit.runner")

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcatlens_audit_runs_total",
		Help: "Completed audit runs by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dcatlens_audit_run_duration_seconds",
		Help:    "End-to-end audit run duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcatlens_audit_checks_total",
		Help: "Individual property checks executed, by kind.",
	}, []string{"kind"})
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Checks selects which analysis categories a run executes.
type Checks string

const (
	ChecksAll        Checks = "all"
	ChecksCompliance Checks = "compliance"
	ChecksVocabulary Checks = "vocabulary"
)

// Config configures an audit Runner.
type Config struct {
	// Endpoint is the SPARQL endpoint URL, recorded in the report.
	Endpoint string

	// Profile supplies the property lists and vocabulary checks.
	Profile *profile.Profile

	// Querier executes SPARQL queries.
	Querier sparql.Querier

	// Checks selects the analysis categories to run.
	// Default: ChecksAll
	Checks Checks

	// Workers bounds concurrent property checks and per-catalog
	// resolution.
	// Default: 4
	Workers int

	// Logger for run progress.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Profile == nil {
		return fmt.Errorf("audit config: Profile is required")
	}
	if c.Querier == nil {
		return fmt.Errorf("audit config: Querier is required")
	}
	switch c.Checks {
	case "", ChecksAll, ChecksCompliance, ChecksVocabulary:
	default:
		return fmt.Errorf("audit config: unknown Checks value %q", c.Checks)
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	if c.Checks == "" {
		c.Checks = ChecksAll
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner executes audit runs. Each run is independent: it resolves a
// fresh entity graph, writes into a fresh aggregator, and produces a
// self-contained report.
type Runner struct {
	config     Config
	resolver   *catalog.Resolver
	evaluator  *compliance.Evaluator
	classifier *vocabulary.Classifier
}

// NewRunner creates a Runner from the given configuration.
func NewRunner(config Config) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &Runner{
		config: config,
		resolver: catalog.NewResolver(config.Querier, catalog.ResolverConfig{
			Workers: config.Workers,
			Logger:  config.Logger,
		}),
		evaluator:  compliance.NewEvaluator(config.Querier, config.Logger),
		classifier: vocabulary.NewClassifier(config.Querier, config.Logger),
	}, nil
}

// Run executes one audit run and returns the assembled report.
//
// Graph resolution failure aborts the run. An endpoint with no catalogs
// yields an empty report, not an error. Property checks run on a bounded
// worker pool; an aggregator duplicate-write is a programming error and
// cancels the whole run.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	runID := uuid.NewString()
	logger := r.config.Logger.With("run_id", runID)
	started := time.Now()

	ctx, span := tracer.Start(ctx, "audit.Run")
	span.SetAttributes(attribute.String("run_id", runID))
	defer span.End()

	// Run-scoped cancellation: callers cancelling ctx stop all in-flight
	// checks.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("audit run started", "endpoint", r.config.Endpoint, "profile", r.config.Profile.Name)

	graph, err := r.resolver.Resolve(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("audit run %s: %w", runID, err)
	}

	if graph.Len() == 0 {
		logger.Info("no catalogs found in the endpoint")
		runsTotal.WithLabelValues("empty").Inc()
		return report.Build(runID, r.config.Endpoint, r.config.Profile, report.NewAggregator(), graph.Warnings, time.Now()), nil
	}
	logger.Info("found catalogs", "count", graph.Len())

	agg := report.NewAggregator()
	if err := r.runChecks(ctx, graph, agg, logger); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("audit run %s: %w", runID, err)
	}

	rep := report.Build(runID, r.config.Endpoint, r.config.Profile, agg, graph.Warnings, time.Now())

	runDuration.Observe(time.Since(started).Seconds())
	runsTotal.WithLabelValues("ok").Inc()
	logger.Info("audit run finished",
		"catalogs", graph.Len(),
		"warnings", len(graph.Warnings),
		"duration", time.Since(started).String(),
	)
	return rep, nil
}

// runChecks fans every (property, class) check out onto a bounded pool.
// Each check is independent and writes its observations exactly once, so
// the only cross-worker coordination is the aggregator itself.
func (r *Runner) runChecks(ctx context.Context, graph *catalog.Graph, agg *report.Aggregator, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	if r.config.Checks != ChecksVocabulary {
		r.queueCompliance(gctx, g, graph, agg, logger)
	}
	if r.config.Checks != ChecksCompliance {
		r.queueVocabulary(gctx, g, graph, agg, logger)
	}
	return g.Wait()
}

func (r *Runner) queueCompliance(gctx context.Context, g *errgroup.Group, graph *catalog.Graph, agg *report.Aggregator, logger *slog.Logger) {
	for _, class := range r.config.Profile.Classes() {
		for _, prop := range r.config.Profile.Properties(class) {
			class, prop := class, prop
			g.Go(func() error {
				logger.Debug("checking property", "property", prop.URI, "class", class)
				checksTotal.WithLabelValues("compliance").Inc()

				key := report.PropertyKey{Property: prop.URI, Class: class}
				for id, obs := range r.evaluator.Evaluate(gctx, prop.URI, class, graph) {
					if err := agg.PutCompliance(id, key, obs); err != nil {
						return err
					}
				}
				return gctx.Err()
			})
		}
	}
}

func (r *Runner) queueVocabulary(gctx context.Context, g *errgroup.Group, graph *catalog.Graph, agg *report.Aggregator, logger *slog.Logger) {
	for _, class := range r.config.Profile.VocabularyClasses() {
		for _, uri := range r.config.Profile.VocabularyChecks(class) {
			class, uri := class, uri
			g.Go(func() error {
				logger.Debug("checking vocabulary", "property", uri, "class", class)
				checksTotal.WithLabelValues("vocabulary").Inc()

				key := report.PropertyKey{Property: uri, Class: class}
				for id, obs := range r.classifier.Classify(gctx, uri, class, graph) {
					if err := agg.PutVocabulary(id, key, obs); err != nil {
						return err
					}
				}
				return gctx.Err()
			})
		}
	}
}
