/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

Every response shares one envelope: a success flag, a business code, a message, and
either a data payload (success) or an optional error detail (failure).
*/
package resp

import (
	"encoding/json"
	"net/http"

	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure returned by the application to clients.
type JSONResponse struct {
	// Success is true for 2xx responses.
	Success bool `json:"success"`

	// Code is the business status code (0 for success, others for specific errors, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload (e.g., data returned from a successful request).
	Data any `json:"data,omitempty"`

	// Error carries optional diagnostic detail on failures.
	Error string `json:"error,omitempty"`
}

// RespondJSON is a generic response function used to set the Content-Type and send the JSON payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	if _, err := w.Write(response); err != nil {
		logx.Warn("Failed to write response body", "error", err.Error())
	}
}

// RespondSuccess sends a successful HTTP 200 response.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondStatus(w, r, http.StatusOK, data)
}

// RespondCreated sends a successful HTTP 201 response.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondStatus(w, r, http.StatusCreated, data)
}

// RespondStatus sends a successful response with an explicit 2xx status.
func RespondStatus(w http.ResponseWriter, r *http.Request, status int, data any) {
	res := JSONResponse{
		Success: true,
		Code:    0,
		Message: "success",
		Data:    data,
	}
	RespondJSON(w, r, status, res)
}

// RespondError sends an HTTP response containing custom error information.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	res := JSONResponse{
		Success: false,
		Code:    customErr.Code,
		Message: customErr.Message,
		Error:   customErr.Detail,
	}
	RespondJSON(w, r, customErr.Status, res)
}

// RespondErr translates any error into the envelope via errs.From.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	RespondError(w, r, errs.From(err))
}
