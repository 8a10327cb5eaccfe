// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/apex/log"
)

// DefaultMaxBody caps request bodies read by DecodeJSON.
const DefaultMaxBody = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON marshals v and writes it with code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	enc, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed JSON-encoding HTTP response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(enc); err != nil {
		log.WithError(err).Error("failed writing HTTP response")
	}
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, code int, format string, args ...any) {
	WriteJSON(w, code, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// StatusError carries the HTTP status a request error maps to.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string { return e.Msg }

// Errorf returns a StatusError.
func Errorf(code int, format string, args ...any) error {
	return &StatusError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Fail writes err, using its StatusError code or 500. Server errors are
// logged.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	var se *StatusError
	if errors.As(err, &se) {
		WriteError(w, se.Code, "%s", se.Msg)
		return
	}
	log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	WriteError(w, http.StatusInternalServerError, "%s", err.Error())
}

// DecodeJSON reads at most limit bytes of the request body into v. An empty
// body leaves v untouched. Oversized bodies are 413; malformed ones 400.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.UseNumber()
	err := dec.Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return Errorf(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", limit)
	default:
		return Errorf(http.StatusBadRequest, "invalid JSON body: %v", err)
	}
}
