// Package api serves a read-only view of the harvester: configured sites, cached pages
// and the latest discovery output.
package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/discovery"
)

type Server struct {
	Cfg   *config.Config
	Cache *cache.Cache
	Log   logrus.FieldLogger
}

// Router registers every route on a fresh engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.health)
	r.GET("/sites", s.sites)
	r.GET("/cache", s.cacheEntry)
	r.GET("/discovery", s.discovery)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond),
		}).Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Job harvest API is running!",
		"status":  "healthy",
	})
}

// sites lists every configured site, optionally narrowed by ?group=.
func (s *Server) sites(c *gin.Context) {
	group := c.Query("group")
	out := make([]config.SiteConfig, 0)
	for _, site := range s.Cfg.Sites() {
		if group != "" && site.Group != group {
			continue
		}
		out = append(out, site)
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "sites": out})
}

func (s *Server) cacheEntry(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	entry, err := s.Cache.Get(c.Request.Context(), rawURL)
	switch {
	case errors.Is(err, cache.ErrMiss):
		c.JSON(http.StatusNotFound, gin.H{"error": "not cached", "key": s.Cache.Key(rawURL)})
	case err != nil:
		s.Log.Errorf("❌ Cache lookup for %s failed: %v", rawURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache lookup failed"})
	default:
		c.JSON(http.StatusOK, entry)
	}
}

func (s *Server) discovery(c *gin.Context) {
	report, err := discovery.ReadReport(s.Cfg.Discovery.Output)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "no discovery run yet"})
	case err != nil:
		s.Log.Errorf("❌ Failed to load discovery report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "discovery report unreadable"})
	default:
		c.JSON(http.StatusOK, report)
	}
}
