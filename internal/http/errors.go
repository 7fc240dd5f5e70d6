package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/llmsearch/internal/embeddings"
	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"github.com/fyrsmithlabs/llmsearch/internal/search"
	"github.com/fyrsmithlabs/llmsearch/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// statusFor maps domain errors to HTTP status codes and a client message.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, search.ErrNoQuery):
		return http.StatusBadRequest, "texts must contain at least one query"
	case errors.Is(err, vectorstore.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, "vector search unavailable"
	case errors.Is(err, embeddings.ErrModelUnavailable):
		return http.StatusInternalServerError, "embedding model unavailable"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

// errorHandler renders every error as {"detail": ...}. Internal causes are
// logged, never returned to the client.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.ForContext(c.Request().Context(), s.logger).Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Detail: msg})
	}
	if err != nil {
		s.logger.Warn("writing error response", zap.Error(err))
	}
}
