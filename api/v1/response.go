package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewSuccessResponse creates a successful API response
func NewSuccessResponse(kind ResponseKind, data interface{}, metadata *ResponseMetadata) *APIResponse {
	return &APIResponse{
		Kind:       kind,
		APIVersion: APIVersion,
		Metadata:   metadata,
		Data:       data,
	}
}

// NewErrorResponse creates an error API response
func NewErrorResponse(errors []APIError) *APIResponse {
	return &APIResponse{
		Kind:       KindError,
		APIVersion: APIVersion,
		Metadata: &ResponseMetadata{
			GeneratedAt: time.Now(),
		},
		Errors: errors,
	}
}

// SendSuccess sends a successful response
func SendSuccess(c *gin.Context, kind ResponseKind, data interface{}, metadata *ResponseMetadata) {
	if metadata == nil {
		metadata = &ResponseMetadata{GeneratedAt: time.Now()}
	}
	c.JSON(http.StatusOK, NewSuccessResponse(kind, data, metadata))
}

// SendError sends an error response
func SendError(c *gin.Context, statusCode int, code string, message string, details map[string]interface{}) {
	response := NewErrorResponse([]APIError{{
		Code:    code,
		Message: message,
		Details: details,
	}})
	c.JSON(statusCode, response)
}

// SendNotFound sends a not found error response
func SendNotFound(c *gin.Context, code, message string) {
	SendError(c, http.StatusNotFound, code, message, nil)
}

// SendInternalServerError sends an internal server error response
func SendInternalServerError(c *gin.Context, err error) {
	SendError(c, http.StatusInternalServerError, ErrorCodeInternal,
		"Internal server error occurred", map[string]interface{}{"error": err.Error()})
}

// SendBadRequest sends a bad request error response
func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, ErrorCodeBadRequest, message, nil)
}
