// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tenantry/triage/internal/buildinfo"
	"github.com/tenantry/triage/internal/classify"
	"github.com/tenantry/triage/internal/tenant"
)

// Server is the HTTP front of the classification service.
type Server struct {
	engine     *gin.Engine
	service    *Service
	httpServer *http.Server
}

// NewServer builds the gin engine and registers all routes.
func NewServer(service *Service, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:  engine,
		service: service,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1")
	v1.POST("/classify", s.handleClassify)
	v1.GET("/tenants", s.handleListTenants)
	v1.POST("/tenants/reload", s.handleReloadTenants)
}

// Run starts the listener and blocks until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context, host string, port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("API server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": buildinfo.Version,
		"tenants": len(s.service.TenantIDs()),
	})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req classify.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}
	if req.Message == "" || req.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message and tenant_id are required"})
		return
	}

	resp, err := s.service.Process(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, tenant.ErrUnknownTenant) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tenant", "tenant_id": req.TenantID})
			return
		}
		log.Errorf("Failed to process message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListTenants(c *gin.Context) {
	ids := s.service.TenantIDs()
	c.JSON(http.StatusOK, gin.H{"tenants": ids, "count": len(ids)})
}

func (s *Server) handleReloadTenants(c *gin.Context) {
	ids, err := s.service.ReloadTenants()
	if err != nil {
		// Failed reloads keep the previous profile set active.
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to reload tenant profiles",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Tenant profiles reloaded successfully",
		"tenants": ids,
	})
}
