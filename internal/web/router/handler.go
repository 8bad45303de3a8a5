package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/api"
	"github.com/zcapi-go/zcapi/internal/web/middleware"
	"github.com/zcapi-go/zcapi/internal/web/response"
)

const maxMemory = 32 << 20

// Handler turns HTTP requests into dispatcher requests
type Handler struct {
	dispatcher  *api.Dispatcher
	logger      *zap.Logger
	showDetails bool
}

// NewHandler creates the model endpoint handler. With showDetails set,
// internal error messages are included in 500 responses.
func NewHandler(dispatcher *api.Dispatcher, logger *zap.Logger, showDetails bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dispatcher:  dispatcher,
		logger:      logger,
		showDetails: showDetails,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := formPayload(r)
	if err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	req := api.Request{
		Method:  r.Method,
		App:     chi.URLParam(r, "app"),
		Model:   chi.URLParam(r, "model"),
		ID:      chi.URLParam(r, "id"),
		Payload: payload,
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", req.Method),
			zap.String("app", req.App),
			zap.String("model", req.Model),
			zap.String("id", req.ID),
			zap.Error(err),
		)
		response.RenderInternalError(w, err, h.showDetails)
		return
	}

	if err := response.Render(w, resp); err != nil {
		h.logger.Error("render failed", zap.Error(err))
		response.RenderInternalError(w, err, h.showDetails)
	}
}

// formPayload reads the form-encoded body. A key sent more than once keeps
// its last value.
func formPayload(r *http.Request) (map[string]string, error) {
	if r.Method != http.MethodPost {
		return nil, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}

	payload := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			payload[key] = values[len(values)-1]
		}
	}
	return payload, nil
}
