package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chew-z/llm-nodes/internal/api"
	"github.com/chew-z/llm-nodes/internal/chat"
	"github.com/chew-z/llm-nodes/internal/nodes"
	"github.com/chew-z/llm-nodes/internal/pixels"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Version is reported by /api/version and the CLI
const Version = "0.2.0"

// handleError sends a standardized error response with context-aware cancellation handling
func handleError(c *gin.Context, err error) {
	// Client disconnected
	if errors.Is(err, context.Canceled) {
		c.JSON(499, gin.H{"error": "request canceled"})
		return
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		c.JSON(se.StatusCode, se)
		return
	}
	if kind := api.KindOf(err); kind != api.KindUnknown {
		slog.Warn("node run failed", "kind", kind.String(), "path", c.FullPath(), "error", err)
	}
	c.JSON(api.HTTPStatus(err), api.StatusError{ErrorMessage: err.Error()})
}

// requireJSON rejects run requests whose body is not application/json.
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != binding.MIMEJSON {
			handleError(c, api.ErrUnsupportedMediaType("Content-Type must be application/json"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// handleVersion returns the API version
func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
	})
}

// handleObjectInfo returns every node schema keyed by node name
func (s *Server) handleObjectInfo(c *gin.Context) {
	info := make(map[string]api.NodeInfo, len(nodes.Catalog))
	for _, n := range nodes.Catalog {
		info[n.Name] = n
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDisplayNames(c *gin.Context) {
	c.JSON(http.StatusOK, nodes.DisplayNames())
}

// handleNodeInfo returns a single node schema
func (s *Server) handleNodeInfo(c *gin.Context) {
	name := c.Param("node")
	n, ok := nodes.Lookup(name)
	if !ok {
		handleError(c, api.ErrNotFound(fmt.Sprintf("node '%s' not found", name)))
		return
	}
	c.JSON(http.StatusOK, gin.H{n.Name: n})
}

// handleRun dispatches to the node named in the path
func (s *Server) handleRun(c *gin.Context) {
	name := c.Param("node")
	n, ok := nodes.Lookup(name)
	if !ok {
		handleError(c, api.ErrNotFound(fmt.Sprintf("node '%s' not found", name)))
		return
	}

	switch n.Name {
	case nodes.CaptionNodeName:
		s.runCaption(c, n)
	case nodes.ResponseNodeName:
		s.runResponse(c, n)
	}
}

// configuredBaseURL is the endpoint the configured api_key belongs to.
func (s *Server) configuredBaseURL() string {
	if s.config.BaseURL != "" {
		return s.config.BaseURL
	}
	return nodes.DefaultBaseURL
}

// captionDefaults seeds absent request fields from the schema and config.
// api_key is left empty; resolveAPIKey fills it after binding.
func (s *Server) captionDefaults() api.CaptionParams {
	p := nodes.DefaultCaptionParams()
	p.BaseURL = s.configuredBaseURL()
	if s.config.ModelID != "" {
		p.ModelID = s.config.ModelID
	}
	return p
}

func (s *Server) responseDefaults() api.ResponseParams {
	p := nodes.DefaultResponseParams()
	p.BaseURL = s.configuredBaseURL()
	if s.config.ModelID != "" {
		p.ModelID = s.config.ModelID
	}
	return p
}

// suppliedKey captures whether the body carried api_key at all.
type suppliedKey struct {
	APIKey *string `json:"api_key"`
}

// bindRun decodes the body into dst and returns the api_key the caller sent, or nil.
func bindRun(c *gin.Context, dst any) (*string, error) {
	if err := c.ShouldBindBodyWithJSON(dst); err != nil {
		return nil, err
	}
	var k suppliedKey
	if err := c.ShouldBindBodyWithJSON(&k); err != nil {
		return nil, err
	}
	return k.APIKey, nil
}

// resolveAPIKey picks the key sent to baseURL. The configured key is only
// ever sent to the configured endpoint; any other base_url must bring its own.
func (s *Server) resolveAPIKey(baseURL string, supplied *string) string {
	if supplied != nil {
		return *supplied
	}
	if chat.Endpoint(baseURL) == chat.Endpoint(s.configuredBaseURL()) {
		return s.config.APIKey
	}
	slog.Warn("configured api_key withheld from request base_url", "base_url", baseURL)
	return ""
}

func (s *Server) runCaption(c *gin.Context, n api.NodeInfo) {
	req := api.CaptionRunRequest{CaptionParams: s.captionDefaults()}
	key, err := bindRun(c, &req)
	if err != nil {
		handleError(c, api.ErrBadRequest("Invalid request: "+err.Error()))
		return
	}
	req.APIKey = s.resolveAPIKey(req.BaseURL, key)

	images, err := collectImages(req)
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	captions, err := s.captioner.Run(c.Request.Context(), images, req.CaptionParams)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{n.OutputName: captions})
}

func (s *Server) runResponse(c *gin.Context, n api.NodeInfo) {
	req := api.ResponseRunRequest{ResponseParams: s.responseDefaults()}
	key, err := bindRun(c, &req)
	if err != nil {
		handleError(c, api.ErrBadRequest("Invalid request: "+err.Error()))
		return
	}
	req.APIKey = s.resolveAPIKey(req.BaseURL, key)

	text, err := s.responder.Run(c.Request.Context(), req.ResponseParams)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{n.OutputName: text})
}

// collectImages returns the tensor images followed by the decoded files.
func collectImages(req api.CaptionRunRequest) ([]pixels.Image, error) {
	var images []pixels.Image
	if req.Image != nil {
		split, err := req.Image.Split()
		if err != nil {
			return nil, fmt.Errorf("invalid image tensor: %w", err)
		}
		images = append(images, split...)
	}
	for i, f := range req.ImageFiles {
		img, err := pixels.DecodeBase64(f)
		if err != nil {
			return nil, fmt.Errorf("image_files[%d]: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}
