package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/processor"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// ResultReader 由 storage.Store 实现
type ResultReader interface {
	LatestResult(ctx context.Context) (*collector.CrawlResult, error)
}

type Server struct {
	results ResultReader
	logger  *zap.Logger
}

func NewServer(results ResultReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{results: results, logger: logger}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/results", s.latestResult)
		v1.GET("/results/:source", s.sourceItems)
		v1.GET("/failures", s.failures)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// load 读取最新结果，失败时直接写响应并返回 false
func (s *Server) load(c *gin.Context) (*collector.CrawlResult, bool) {
	res, err := s.results.LatestResult(c.Request.Context())
	if errors.Is(err, storage.ErrNoResult) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no crawl result yet",
		})
		return nil, false
	}
	if err != nil {
		s.logger.Error("load latest result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return nil, false
	}
	return res, true
}

func (s *Server) latestResult(c *gin.Context) {
	res, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"mode":      res.Mode,
			"succeeded": res.Succeeded(),
			"failed":    res.Failed,
			"names":     res.Names,
			"results":   res.Results,
		},
	})
}

func (s *Server) sourceItems(c *gin.Context) {
	res, ok := s.load(c)
	if !ok {
		return
	}
	source := c.Param("source")
	if _, found := res.Results[source]; !found {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "source has no result",
		})
		return
	}

	items := make([]processor.ProcessedItem, 0, len(res.Results[source]))
	for _, it := range processor.Flatten(res) {
		if it.SourceID == source {
			items = append(items, it)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"source": source,
			"name":   res.Names[source],
			"items":  items,
		},
	})
}

func (s *Server) failures(c *gin.Context) {
	res, ok := s.load(c)
	if !ok {
		return
	}
	out := make([]gin.H, 0, len(res.Failed))
	for _, id := range res.Failed {
		out = append(out, gin.H{"id": id, "name": res.Names[id]})
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}
