package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/restaurant-checkout/api/responses"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

// Recoverer turns a handler panic into a 500 and logs it with whatever
// payment intent or order the handler had noted. A panic on the confirm
// route after the charge succeeded is then traceable to the intent the
// reconciliation sweep will pick up. http.ErrAbortHandler is re-raised.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					fields := scopeFrom(ctx).fields()
					if fields == nil {
						fields = map[string]any{}
					}
					fields["panic"] = fmt.Sprint(rec)
					fields["route"] = r.Method + " " + r.URL.Path
					ctx = logg.WithFields(ctx, fields)
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
