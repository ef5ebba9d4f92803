package api

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/loginflow"
)

// ErrorBody is the JSON error payload returned by every endpoint.
type ErrorBody struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// MessageBody is the payload for endpoints that only confirm an action.
type MessageBody struct {
	Message string `json:"message"`
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	message := "An unexpected error occurred. Please try again."
	if code != errors.ErrCodeInternal {
		if appErr, ok := err.(*errors.Error); ok {
			message = appErr.Message
		}
	}

	render.Status(r, errors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorBody{Code: code, Message: message})
}

func renderFlowError(w http.ResponseWriter, r *http.Request, flowErr *loginflow.Error) {
	render.Status(r, errors.MapErrorCodeToHTTPStatus(flowErr.Code))
	render.JSON(w, r, ErrorBody{Code: flowErr.Code, Message: flowErr.Message})
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorBody{Code: errors.ErrCodeInvalidInput, Message: message})
}
