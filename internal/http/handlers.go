package http

import (
	"net/http"

	"github.com/fyrsmithlabs/llmsearch/internal/search"
	"github.com/fyrsmithlabs/llmsearch/internal/vectorstore"
	"github.com/labstack/echo/v4"
)

// handleTrue serves the placeholder endpoints.
func handleTrue(c echo.Context) error {
	return c.JSON(http.StatusOK, true)
}

// handleHealth returns a simple health check response.
//
//	@Summary	Liveness check
//	@Tags		test
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/test/health [get]
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func bindTexts(c echo.Context) (EmbeddingRequest, error) {
	var req EmbeddingRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return req, nil
}

// handleEmbed returns one vector per input text. An empty list yields an
// empty list.
//
//	@Summary		Embed texts
//	@Description	Returns one unit-length vector per input text, in order.
//	@Tags			test
//	@Accept			json
//	@Produce		json
//	@Param			request	body		EmbeddingRequest	true	"Texts to embed"
//	@Success		200		{object}	EmbeddingResponse
//	@Failure		400		{object}	ErrorResponse	"Malformed body"
//	@Failure		500		{object}	ErrorResponse	"Model unavailable"
//	@Router			/test/embed [post]
func (s *Server) handleEmbed(c echo.Context) error {
	req, err := bindTexts(c)
	if err != nil {
		return err
	}
	vectors, err := s.embedder.Embed(c.Request().Context(), req.Texts)
	if err != nil {
		return err
	}
	if vectors == nil {
		vectors = [][]float32{}
	}
	return c.JSON(http.StatusOK, EmbeddingResponse{Embeddings: vectors})
}

// handleSearch serves both search endpoints; mode only labels logs and
// metrics.
//
//	@Summary		Nearest records by cosine similarity
//	@Description	Embeds the first text and returns the closest records. Values are masked unless the token matches.
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Security		BearerToken
//	@Security		PostToken
//	@Param			limit	query		int					false	"Maximum results; invalid values fall back to the default"
//	@Param			request	body		EmbeddingRequest	true	"Query texts; only the first is used"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse	"No query text"
//	@Failure		500		{object}	ErrorResponse	"Model unavailable"
//	@Failure		503		{object}	ErrorResponse	"Vector search unavailable"
//	@Router			/search/cosine_score [post]
//	@Router			/search/like_by_keyword_score [post]
func (s *Server) handleSearch(mode string) echo.HandlerFunc {
	return func(c echo.Context) error {
		authorized := s.verifier.VerifyRequest(c.Request())

		req, err := bindTexts(c)
		if err != nil {
			return err
		}
		limit := search.ResolveLimit(c.QueryParam("limit"), s.config.DefaultLimit)

		results, err := s.searcher.Search(c.Request().Context(), search.Request{
			Texts:      req.Texts,
			Limit:      limit,
			Authorized: authorized,
			Mode:       mode,
		})
		if err != nil {
			return err
		}
		if results == nil {
			results = []vectorstore.Record{}
		}
		return c.JSON(http.StatusOK, SearchResponse{Results: results})
	}
}

// handleDocsRoot sends browsers to the Swagger UI.
func handleDocsRoot(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
}
