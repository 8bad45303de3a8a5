package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/web/response"
)

// Recovery turns a panic in the handler into a 500 JSON error and logs it
// with a stack trace
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				err, ok := p.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", p)
				}

				logger.Error("panic recovered",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
					zap.Stack("stack"),
				)

				response.RenderInternalError(w, err, false)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
