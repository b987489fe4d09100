// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openmobility/dcatlens/services/audit"
	"github.com/openmobility/dcatlens/services/audit/report"
)

// =============================================================================
// Serve Command
// =============================================================================

// reportStore holds the latest completed report for the HTTP surface.
type reportStore struct {
	mu     sync.RWMutex
	latest *report.Report
}

func (s *reportStore) get() *report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *reportStore) set(rep *report.Report) {
	s.mu.Lock()
	s.latest = rep
	s.mu.Unlock()
}

// runServe starts the HTTP report service. It audits once on startup,
// keeps the result in memory, and re-audits on demand.
func runServe(cmd *cobra.Command, args []string) error {
	runner, err := newRunner(audit.ChecksAll)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := &reportStore{}
	if rep, err := runner.Run(ctx); err != nil {
		// The service still starts; the endpoint may come up later and a
		// POST /api/v1/audit can retry.
		logger.Warn("initial audit failed", "error", err.Error())
	} else {
		store.set(rep)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.GET("/report", func(c *gin.Context) {
		rep := store.get()
		if rep == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no report available yet"})
			return
		}
		c.JSON(http.StatusOK, rep)
	})
	// Audits run synchronously in the request scope; the caller's
	// disconnect cancels the run.
	api.POST("/audit", func(c *gin.Context) {
		rep, err := runner.Run(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		store.set(rep)
		c.JSON(http.StatusOK, rep)
	})

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("report service listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("report service stopped")
	return nil
}
