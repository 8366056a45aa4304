package response

import (
	"encoding/json"
	"net/http"

	"zudlik/internal/contextutils"
	"zudlik/internal/models"
	"zudlik/internal/services"

	"go.uber.org/zap"
)

// Envelope is the uniform JSON body of every API response.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Data      interface{}     `json:"data,omitempty"`
	Error     *ErrorBody      `json:"error,omitempty"`
	Meta      *Meta           `json:"meta,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Meta carries response metadata such as pagination.
type Meta struct {
	Pagination *models.PaginationMeta `json:"pagination,omitempty"`
}

// Builder writes enveloped JSON responses.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a response builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// WriteSuccess writes a 200 with the given payload.
func (b *Builder) WriteSuccess(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	b.write(w, r, http.StatusOK, &Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteCreated writes a 201 with the given payload.
func (b *Builder) WriteCreated(w http.ResponseWriter, r *http.Request, message string, data interface{}) {
	b.write(w, r, http.StatusCreated, &Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WritePaginated writes a 200 carrying a page of items with its metadata.
func (b *Builder) WritePaginated(w http.ResponseWriter, r *http.Request, message string, data interface{}, pagination models.PaginationMeta) {
	b.write(w, r, http.StatusOK, &Envelope{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    &Meta{Pagination: &pagination},
	})
}

// WriteNoContent writes a 204.
func (b *Builder) WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps a service error to its HTTP status and writes the error
// envelope. Internal error details never reach the client.
func (b *Builder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := services.GetServiceError(err)
	if svcErr == nil {
		b.logger.Error("unclassified handler error",
			zap.String("request_id", contextutils.GetRequestID(r.Context())),
			zap.Error(err),
		)
		svcErr = services.NewInternalError("internal server error", err)
	}

	message := svcErr.Message
	if svcErr.StatusCode >= http.StatusInternalServerError {
		b.logger.Error("internal error",
			zap.String("request_id", contextutils.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = "internal server error"
	}

	b.write(w, r, svcErr.StatusCode, &Envelope{
		Success: false,
		Error: &ErrorBody{
			Type:    svcErr.Type,
			Message: message,
			Code:    svcErr.Code,
		},
	})
}

// WriteValidationError writes a 400 for malformed requests that never
// reached a service.
func (b *Builder) WriteValidationError(w http.ResponseWriter, r *http.Request, message string) {
	b.WriteError(w, r, services.NewValidationError(message, nil))
}

func (b *Builder) write(w http.ResponseWriter, r *http.Request, status int, envelope *Envelope) {
	envelope.RequestID = contextutils.GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		b.logger.Error("response encoding failed", zap.Error(err))
	}
}
