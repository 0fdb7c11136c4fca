package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type envelope map[string]any

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	healthCheck := struct {
		Status      string `json:"status"`
		Environment string `json:"environment"`
		Version     string `json:"version"`
	}{
		Status:      "available",
		Environment: app.config.env,
		Version:     version,
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"data": healthCheck})
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	js, err := json.Marshal(body)
	if err != nil {
		app.serverError(w, r, "writeJSON", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
	w.Write([]byte("\n"))
}

// readJSON decodes a single JSON object from the body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", typeErr.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", typeErr.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesErr.Limit)
		default:
			return err
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func composeJSONError(err error) envelope {
	return envelope{"error": err.Error()}
}

func writeError(w http.ResponseWriter, err error, statusCode int) {
	js, _ := json.Marshal(composeJSONError(err))
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintln(w, string(js))
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	app.requestLogger(r).WithFields(logrus.Fields{"operation": op}).WithError(err).Error("request failed")
	writeError(w, errors.New("the server encountered a problem and could not process your request"), http.StatusInternalServerError)
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, err, http.StatusBadRequest)
}

func notFound(w http.ResponseWriter, resource string) {
	writeError(w, fmt.Errorf("%s not found", resource), http.StatusNotFound)
}

func editConflict(w http.ResponseWriter) {
	writeError(w, errors.New("unable to update the record due to an edit conflict, please try again"), http.StatusConflict)
}

func (app *application) failedValidation(w http.ResponseWriter, r *http.Request, errs map[string]string) {
	app.writeJSON(w, r, http.StatusBadRequest, envelope{"error": errs})
}

func readIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
