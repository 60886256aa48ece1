package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/caseflow"
	"dhportal/main_backend/cases"
)

type server struct {
	svc     *caseflow.Service
	tokens  *authz.TokenIssuer
	log     logrus.FieldLogger
	timeout time.Duration
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("POST /cases", s.authed(s.createCase))
	mux.Handle("GET /cases", s.authed(s.listCases))
	mux.Handle("GET /cases/{id}", s.authed(s.getCase))
	mux.Handle("DELETE /cases/{id}", s.authed(s.softDelete))
	mux.Handle("POST /cases/{id}/advance", s.authed(s.advance))
	mux.Handle("POST /cases/{id}/flags", s.authed(s.flag))
	mux.Handle("POST /cases/{id}/corrections/{field}/resolve", s.authed(s.resolve))
	mux.Handle("POST /cases/{id}/return", s.authed(s.returnForCompliance))
	mux.Handle("POST /cases/{id}/submit-corrections", s.authed(s.submitCorrections))
	mux.Handle("POST /cases/{id}/restore", s.authed(s.restore))
	mux.Handle("POST /cases/{id}/purge", s.authed(s.purge))

	return cors(mux)
}

// Basic CORS for the staff frontend
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authed resolves the bearer token into the request context and bounds the request with the
// configured timeout.
func (s *server) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := authz.FromBearer(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		caller, err := s.tokens.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		ctx, cancel := context.WithTimeout(authz.WithCaller(r.Context(), caller), s.timeout)
		defer cancel()
		h(w, r.WithContext(ctx))
	})
}

// callerOf returns the caller authed stored. Handlers are only mounted behind authed, so a
// missing caller is the zero Caller, which every permission check rejects.
func callerOf(r *http.Request) authz.Caller {
	c, _ := authz.CallerFrom(r.Context())
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// fail maps a service error onto a status code. Unknown errors are logged and hidden.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, cases.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, cases.ErrPermission):
		status, code = http.StatusForbidden, "permission"
	case errors.Is(err, cases.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, cases.ErrForbiddenTransition):
		status, code = http.StatusConflict, "forbidden_transition"
	case errors.Is(err, cases.ErrValidation):
		status, code = http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, cases.ErrUnknownCheckpoint):
		status, code = http.StatusUnprocessableEntity, "unknown_checkpoint"
	case errors.Is(err, cases.ErrConfirmationMismatch):
		status, code = http.StatusBadRequest, "confirmation_mismatch"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, status, code, "server error")
		return
	}
	writeError(w, status, code, err.Error())
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, false)
}

// decodeOptional is decode for routes where an empty body means all defaults.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		writeError(w, http.StatusBadRequest, "bad_request", "bad request")
		return false
	}
	return true
}
