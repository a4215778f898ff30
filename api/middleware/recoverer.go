package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

// Recoverer turns a handler panic into a logged 500 error envelope. If the handler already
// started its response the connection is left as is. http.ErrAbortHandler is re-raised so
// net/http can drop the connection quietly.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				err := fmt.Errorf("panic: %v", v)
				ctx := r.Context()
				if logg != nil {
					logg.Error(logg.WithField(ctx, "route", routePattern(r)), "panic.recovered", err)
				}
				if rec.wroteHeader() {
					return
				}
				responses.WriteError(ctx, nil, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
