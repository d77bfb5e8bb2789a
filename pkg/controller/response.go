package controller

import (
	"encoding/json"
	"io"
	"net/http"
)

// Response is the envelope every command result is rendered in.
type Response struct {
	Data   any        `json:"data"`
	Errors []APIError `json:"errors"`
}

// Success wraps data in an envelope with an empty error list.
func Success(data any) Response {
	return Response{Data: data, Errors: []APIError{}}
}

// Failure wraps err in an envelope with null data and returns the status it maps to.
func Failure(err error) (int, Response) {
	status, apiErr := MapError(err)
	return status, Response{Errors: []APIError{apiErr}}
}

// Render writes the envelope for (data, err) to w as indented JSON and returns the status.
func Render(w io.Writer, data any, err error) (int, error) {
	status, resp := http.StatusOK, Success(data)
	if err != nil {
		status, resp = Failure(err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return status, enc.Encode(resp)
}
