package httpapi

import (
	"errors"
	"net/http"

	"github.com/sakura-lang/sakura/pkg/sakuraerr"
)

// apiError is the wire shape of an error response.
type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *apiError) Error() string { return e.Message }

func newAPIError(code, message string, status int) *apiError {
	return &apiError{Code: code, Message: message, HTTPStatus: status}
}

// translateError maps a sakuraerr kind to an HTTP status.
func translateError(err error) *apiError {
	if err == nil {
		return nil
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErr *sakuraerr.ValidationError
	if errors.As(err, &validationErr) {
		return newAPIError("VALIDATION_ERROR", validationErr.Error(), http.StatusBadRequest)
	}

	var handlerErr *sakuraerr.HandlerError
	if errors.As(err, &handlerErr) {
		return newAPIError("HANDLER_ERROR", handlerErr.Error(), http.StatusUnprocessableEntity)
	}

	var evalErr *sakuraerr.EvalError
	if errors.As(err, &evalErr) {
		return newAPIError("EVAL_ERROR", evalErr.Error(), http.StatusBadRequest)
	}

	var schedulerErr *sakuraerr.SchedulerError
	if errors.As(err, &schedulerErr) {
		return newAPIError("SCHEDULER_ERROR", schedulerErr.Error(), http.StatusServiceUnavailable)
	}

	var ioErr *sakuraerr.IOError
	if errors.As(err, &ioErr) {
		return newAPIError("IO_ERROR", ioErr.Error(), http.StatusBadRequest)
	}

	switch {
	case errors.Is(err, sakuraerr.ErrTreeNotFound):
		return newAPIError("TREE_NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, sakuraerr.ErrTemplateNotFound):
		return newAPIError("TEMPLATE_NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, sakuraerr.ErrFileNotFound):
		return newAPIError("FILE_NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, sakuraerr.ErrContentConflict):
		return newAPIError("CONTENT_CONFLICT", err.Error(), http.StatusConflict)
	case errors.Is(err, sakuraerr.ErrHandlerNotFound):
		return newAPIError("HANDLER_NOT_FOUND", err.Error(), http.StatusUnprocessableEntity)
	}

	return newAPIError("INTERNAL_ERROR", "an unexpected error occurred", http.StatusInternalServerError)
}
