package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/middleware"
)

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.CodeSchema, domain.CodeInvalidRequest:
		return http.StatusBadRequest
	case domain.CodeRange:
		return http.StatusUnprocessableEntity
	case domain.CodeUnknownDomain, domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeRateLimit:
		return http.StatusTooManyRequests
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the wire error for err. Messages of unclassified
// errors are replaced so internals do not leak to clients.
func errorResponse(err error, requestID string) *domain.ErrorResponse {
	var wire *domain.ErrorResponse
	if errors.As(err, &wire) {
		resp := *wire
		if resp.Timestamp.IsZero() {
			resp.Timestamp = time.Now().UTC()
		}
		if resp.RequestID == "" {
			resp.RequestID = requestID
		}
		return &resp
	}

	resp := domain.NewErrorResponse(err, requestID)
	if resp.Code == domain.CodeInternal {
		resp.Message = "internal server error"
	}
	return resp
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.RequestIDKey)
	resp := errorResponse(err, requestID)
	status := StatusFor(resp.Code)

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       c.FullPath(),
			"code":       resp.Code,
		}).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, resp)
}

// abortInvalid rejects a request that could not be read or bound.
func (s *Server) abortInvalid(c *gin.Context, message string, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	c.AbortWithStatusJSON(status, &domain.ErrorResponse{
		Code:      domain.CodeInvalidRequest,
		Message:   message + ": " + err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString(middleware.RequestIDKey),
	})
}
