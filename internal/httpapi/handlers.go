package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahrav/go-veriai/internal/application"
	"github.com/ahrav/go-veriai/internal/domain"
	"github.com/ahrav/go-veriai/internal/ports"
)

// textRequest is the body of /v1/verify and /v1/sessions/:id/input.
type textRequest struct {
	Text string `json:"text"`
}

// sessionResponse is a session snapshot with its id.
type sessionResponse struct {
	ID string `json:"id"`
	domain.InteractionState
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) example(c *gin.Context) {
	c.JSON(http.StatusOK, textRequest{Text: domain.ExampleText})
}

func (s *Server) verify(c *gin.Context) {
	text, ok := s.bindText(c)
	if !ok {
		return
	}
	if strings.TrimSpace(text) == "" {
		abort(c, http.StatusBadRequest, domain.ErrEmptyInput.Error())
		return
	}

	result, err := s.verifier.Verify(c.Request.Context(), text)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyInput) {
			abort(c, http.StatusBadRequest, domain.ErrorMessage(err))
			return
		}
		_ = c.Error(err)
		abort(c, http.StatusBadGateway, domain.ErrorMessage(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) createSession(c *gin.Context) {
	id, ctrl, err := s.sessions.Create()
	if err != nil {
		if errors.Is(err, application.ErrTooManySessions) {
			abort(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{ID: id, InteractionState: ctrl.Snapshot()})
}

func (s *Server) getSession(c *gin.Context) {
	id, ctrl, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse{ID: id, InteractionState: ctrl.Snapshot()})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setInput(c *gin.Context) {
	id, ctrl, ok := s.session(c)
	if !ok {
		return
	}
	text, ok := s.bindText(c)
	if !ok {
		return
	}
	ctrl.SetInputText(text)
	c.JSON(http.StatusOK, sessionResponse{ID: id, InteractionState: ctrl.Snapshot()})
}

func (s *Server) submit(c *gin.Context) {
	id, ctrl, ok := s.session(c)
	if !ok {
		return
	}
	if !ctrl.Submit(c.Request.Context()) {
		snap := ctrl.Snapshot()
		msg := domain.ErrEmptyInput.Error()
		if snap.Status == domain.StatusAnalyzing {
			msg = "verification already in progress"
		}
		abort(c, http.StatusConflict, msg)
		return
	}
	s.logger.Debug("session submitted", zap.String("session_id", id))
	c.JSON(http.StatusAccepted, sessionResponse{ID: id, InteractionState: ctrl.Snapshot()})
}

func (s *Server) clear(c *gin.Context) {
	id, ctrl, ok := s.session(c)
	if !ok {
		return
	}
	ctrl.Clear()
	c.JSON(http.StatusOK, sessionResponse{ID: id, InteractionState: ctrl.Snapshot()})
}

// session resolves the :id parameter, writing 404 when it is unknown.
func (s *Server) session(c *gin.Context) (string, *application.Controller, bool) {
	id := c.Param("id")
	ctrl, err := s.sessions.Get(id)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			abort(c, http.StatusNotFound, err.Error())
		} else {
			abort(c, http.StatusInternalServerError, err.Error())
		}
		return "", nil, false
	}
	return id, ctrl, true
}

// maxEscapeExpansion is the largest ratio of JSON-escaped bytes to decoded
// UTF-8 bytes.
const maxEscapeExpansion = 6

// bindText decodes a textRequest, enforcing the input size limit.
func (s *Server) bindText(c *gin.Context) (string, bool) {
	// The body cap only bounds reading; the decoded length check below is the
	// real limit. A \u0001 escape is six bytes for one byte of text.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxEscapeExpansion*s.maxInputBytes+1024))

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, s.tooLargeMessage())
			return "", false
		}
		abort(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return "", false
	}
	if len(req.Text) > s.maxInputBytes {
		abort(c, http.StatusRequestEntityTooLarge, s.tooLargeMessage())
		return "", false
	}
	return req.Text, true
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("text exceeds %d bytes", s.maxInputBytes)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
