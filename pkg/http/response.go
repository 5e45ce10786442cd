package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope. Its status mirrors the HTTP status code.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// ListResponse writes rows with their total count.
func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return DataResponse(c, http.StatusOK, &ListDataResponse{
		Rows:  rows,
		Total: total,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequestResponse writes request validation failures.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// ErrorResponse writes a single AppError with its own status. Internal
// errors never expose their cause.
func ErrorResponse(c echo.Context, appErr *AppError) error {
	if appErr == nil || appErr.Status == 0 {
		appErr = InternalError("internal error")
	}
	if appErr.Status >= http.StatusInternalServerError {
		return DataResponse(c, appErr.Status, []*AppError{{
			Code:    appErr.Code,
			Message: appErr.Message,
			Status:  appErr.Status,
		}})
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
