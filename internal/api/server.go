package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/kilnlm/kiln/internal/logger"
)

// Server exposes one engine over HTTP.
type Server struct {
	engine *Engine
	log    logger.Logger
	clock  func() time.Time
}

func NewServer(engine *Engine, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		engine: engine,
		log:    log,
		clock:  time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/generate", s.handleGenerate)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, s.engine.Info())
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, "malformed JSON body: "+err.Error())
	}
	params, err := s.engine.resolve(&req)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	out, err := s.engine.Generate(c.Request().Context(), req.Prompt, params)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return writeBadRequest(c, err.Error())
		}
		s.log.Error("generation failed", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}

	return writeJSON(c, http.StatusOK, GenerateResponse{
		ID:         "gen-" + uuid.NewString(),
		Created:    s.clock().Unix(),
		Prompt:     req.Prompt,
		Text:       out.Text,
		Tokens:     out.Tokens,
		DurationMS: float64(out.Stats.Duration) / float64(time.Millisecond),
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "")
}

func writeError(c *echo.Context, status int, errType, msg, param string) error {
	return writeJSON(c, status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Param:   param,
		},
	})
}

func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, b)
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
