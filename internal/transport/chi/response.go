package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/logger"
)

// apiError is the error member of every envelope.
type apiError struct {
	Code    domain.Code `json:"code"`
	Message string      `json:"message"`
}

// envelope is the response shape of every JSON API route: exactly one of Data / Error is set.
type envelope struct {
	Data  any       `json:"data"`
	Error *apiError `json:"error"`
	Meta  any       `json:"meta"`
}

// requestMeta is the meta of responses that carry nothing but the request id.
type requestMeta struct {
	RequestID string `json:"requestId"`
	Count     *int   `json:"count,omitempty"`
}

func metaFor(r *http.Request) requestMeta {
	return requestMeta{RequestID: chiMiddleware.GetReqID(r.Context())}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data, meta any) {
	writeJSON(w, status, envelope{Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code domain.Code, message string) {
	writeJSON(w, status, envelope{
		Error: &apiError{Code: code, Message: message},
		Meta:  metaFor(r),
	})
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, r *http.Request, err error) bool

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code domain.Code) errorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, r, status, code, domain.PublicMessage(err))
		return true
	}
}

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrValidation, http.StatusBadRequest, domain.CodeValidation),
	sentinelHandler(domain.ErrForbidden, http.StatusForbidden, domain.CodeForbidden),
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, domain.CodeNotFound),
	sentinelHandler(domain.ErrProviderRateLimit, http.StatusTooManyRequests, domain.CodeProviderRateLimit),
	sentinelHandler(domain.ErrProviderAuth, http.StatusBadGateway, domain.CodeProviderAuth),
	sentinelHandler(domain.ErrProviderInvalidResponse, http.StatusBadGateway, domain.CodeProviderInvalidResponse),
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, r, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, domain.CodeInternal, domain.PublicMessage(err))
}
