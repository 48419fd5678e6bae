package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/plexsource/internal/session"
)

type createSessionRequest struct {
	Slug string `json:"slug"`
}

type submitRequest struct {
	AllowedServers *[]string `json:"allowed_servers"`
}

func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return sess, true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sess, err := s.sessions.Open(c.Request.Context(), strings.TrimSpace(req.Slug), nil)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, sess.View())
}

func (s *Server) GetSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	respondData(c, sess.View())
}

func (s *Server) EditSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req session.Edit
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := sess.Edit(req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, view)
}

func (s *Server) DeleteSession(c *gin.Context) {
	if err := s.sessions.Discard(c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) Authorize(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	if _, err := sess.Authorize(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sess.View())
}

func (s *Server) CloseAuthorizationWindow(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	sess.CloseWindow()
	respondData(c, sess.View())
}

func (s *Server) ReloadResources(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	if err := sess.Discover(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sess.View())
}

func (s *Server) ReloadFlows(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	if s.flows != nil {
		s.flows.Invalidate(c.Request.Context())
	}
	if err := sess.LoadReferences(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sess.View())
}

func (s *Server) Submit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var selection []string
	if req.AllowedServers != nil {
		selection = append([]string{}, (*req.AllowedServers)...)
	}

	res, err := sess.Submit(c.Request.Context(), selection)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{
		"message": res.Message,
		"created": res.Created,
		"source":  res.Source,
		"session": sess.View(),
	})
}
