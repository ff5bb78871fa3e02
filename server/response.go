package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"webtoondl/downloader"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind downloader.ErrorKind) int {
	switch kind {
	case downloader.KindInvalidRequest:
		return http.StatusBadRequest
	case downloader.KindBusy:
		return http.StatusServiceUnavailable
	case downloader.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError writes {"error": message} with the status for err's kind
func RespondWithError(c echo.Context, err error) error {
	return c.JSON(StatusFor(downloader.KindOf(err)), ErrorResponse{Error: downloader.PublicMessage(err)})
}

// RespondWithMessage writes {"error": message} with an explicit status
func RespondWithMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Error: message})
}
