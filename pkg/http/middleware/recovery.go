package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "FinSeries/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 in the error envelope. Nothing is
// written when the handler already committed a response.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				if l != nil {
					l.Error("panic recovered",
						applogger.Error(perr),
						applogger.String("method", c.Request().Method),
						applogger.String("path", c.Path()),
						applogger.String("stack", string(debug.Stack())))
				}
				if c.Response().Committed {
					return
				}
				errs := []map[string]string{{"code": "ERR_INTERNAL", "message": "internal error"}}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": http.StatusText(http.StatusInternalServerError),
					"data":    errs,
				})
			}()
			return next(c)
		}
	}
}
