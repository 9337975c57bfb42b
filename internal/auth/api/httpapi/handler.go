package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MockThePlank/passkey-playground/internal/auth/ceremony"
	"github.com/MockThePlank/passkey-playground/internal/auth/session"
	apperrors "github.com/MockThePlank/passkey-playground/internal/platform/errors"
)

// maxBodyBytes bounds request bodies; authenticator responses are small.
const maxBodyBytes = 1 << 20

// Handler serves the auth API.
type Handler struct {
	sessions   *session.Manager
	ceremonies *ceremony.Service
	tracer     trace.Tracer
}

// New builds the HTTP handler for the auth API.
func New(sessions *session.Manager, ceremonies *ceremony.Service) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if ceremonies == nil {
		return nil, errors.New("ceremony service is required")
	}
	return &Handler{
		sessions:   sessions,
		ceremonies: ceremonies,
		tracer:     otel.Tracer("auth-http"),
	}, nil
}

// Routes returns the routed handler for the API surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register/options", h.registerOptions)
	mux.HandleFunc("POST /api/auth/register/verify", h.registerVerify)
	mux.HandleFunc("POST /api/auth/login/options", h.loginOptions)
	mux.HandleFunc("POST /api/auth/login/verify", h.loginVerify)
	mux.HandleFunc("GET /api/auth/me", h.me)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
	mux.HandleFunc("GET /api/health", h.health)
	return h.traced(mux)
}

// traced wraps the mux in a per-request span.
func (h *Handler) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) registerOptions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, apperrors.New(apperrors.CodeUserEmptyUsername, "decode request body"))
		return
	}

	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	creation, err := h.ceremonies.BeginRegistration(r.Context(), sess, body.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creation.Response)
}

func (h *Handler) registerVerify(w http.ResponseWriter, r *http.Request) {
	response, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeVerificationFailed, "read request body"))
		return
	}

	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.ceremonies.FinishRegistration(r.Context(), sess, response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifiedResponse{Verified: true, Username: identity.Username})
}

func (h *Handler) loginOptions(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	assertion, err := h.ceremonies.BeginLogin(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assertion.Response)
}

func (h *Handler) loginVerify(w http.ResponseWriter, r *http.Request) {
	response, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeVerificationFailed, "read request body"))
		return
	}

	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.ceremonies.FinishLogin(r.Context(), sess, response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifiedResponse{Verified: true, Username: identity.Username})
}

// me reports the authenticated identity. It never creates a session.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Lookup(r)
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeUnauthenticated, "no session"))
		return
	}
	identity, ok := sess.Identity()
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeUnauthenticated, "session not established"))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}{UserID: identity.UserID, Username: identity.Username})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

type verifiedResponse struct {
	Verified bool   `json:"verified"`
	Username string `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError renders the public error body. Internal detail stays in logs;
// the client sees only the sanitized message for the code.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(code)})
}

// publicMessage maps an error code to the client-facing message. A counter
// regression is deliberately indistinguishable from any other failed
// verification.
func publicMessage(code apperrors.Code) string {
	switch code {
	case apperrors.CodeUserEmptyUsername:
		return "Username is required"
	case apperrors.CodeUserInvalidUsername:
		return "Invalid username"
	case apperrors.CodeNoPendingCeremony:
		return "No pending ceremony"
	case apperrors.CodeVerificationFailed, apperrors.CodeCounterRegression:
		return "Verification failed"
	case apperrors.CodeCredentialNotFound:
		return "Credential not found"
	case apperrors.CodeUnauthenticated:
		return "Not authenticated"
	case apperrors.CodeConflict:
		return "Already registered"
	default:
		return "Internal server error"
	}
}
