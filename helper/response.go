package helper

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in the "code" field of error responses.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidTable       = "INVALID_TABLE"
	CodeNoWritableFields   = "NO_WRITABLE_FIELDS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeForbiddenStatement = "FORBIDDEN_STATEMENT"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePreservedMissing   = "PRESERVED_RECORD_MISSING"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeEngineError        = "ENGINE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

func SendError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"success": false, "error": message, "code": code})
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message string) {
	SendError(c, status, code, message)
	c.Abort()
}

func SendSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func SendCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}
