package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"document-qa/internal/models"
)

type APIResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Code: "ok", Message: "ok", Data: data})
}

func fail(c *gin.Context, err error) {
	c.JSON(models.HTTPStatusCode(err), APIResponse{Code: errorCode(err), Message: err.Error()})
}

// errorCode names the pipeline error kind for API clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrIngest):
		return "ingest_error"
	case errors.Is(err, models.ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, models.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, models.ErrGeneration):
		return "generation_error"
	default:
		return "internal_error"
	}
}
