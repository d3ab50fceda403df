package handlers

import (
	"net/http"
	"strings"
	"time"

	"cryptotracker/internal/auth"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"go.uber.org/zap"
)

const sessionHeader = "X-Session-Token"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      models.Identity `json:"user"`
	// Warning is set when sign-up succeeded but the account document or the
	// session could not be created. Token is empty in the latter case.
	Warning *ErrorResponse `json:"warning,omitempty"`
}

func sessionResponse(sess models.Session) SessionResponse {
	return SessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: sess.Identity()}
}

// sessionToken reads the token from the Authorization bearer, the session
// header, or the token query parameter (EventSource cannot set headers).
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := r.Header.Get(sessionHeader); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// withSession resolves the caller's session and attaches the identity to
// the request context.
func (s *Server) withSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		ident, err := s.Auth.Resolve(r.Context(), token)
		if err != nil {
			_, span, traceID := startSpan(r, "ResolveSession")
			span.End()
			writeError(w, traceID, err)
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), ident, token)))
	})
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "SignUpHandler")
	defer span.End()

	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, traceID, err)
		return
	}

	res, err := s.Auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	resp := sessionResponse(res.Session)
	if res.Warning != nil {
		_, body := errorBody(res.Warning)
		resp.Warning = &body
		logger.Log.Warn("Sign-up completed with a warning",
			zap.String("trace_id", traceID),
			zap.Bool("has_session", res.Session.Token != ""),
			zap.Error(res.Warning),
		)
	}
	writeJSON(w, http.StatusCreated, Response{Message: "Account created successfully", Data: resp})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "SignInHandler")
	defer span.End()

	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, traceID, err)
		return
	}

	sess, err := s.Auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, traceID, err)
		return
	}

	logger.Log.Info("User signed in",
		zap.String("trace_id", traceID),
		zap.String("user_id", sess.UserID),
	)
	writeJSON(w, http.StatusOK, Response{Message: "Signed in successfully", Data: sessionResponse(sess)})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	ctx, span, traceID := startSpan(r, "SignOutHandler")
	defer span.End()

	if err := s.Auth.SignOut(ctx, auth.TokenFromContext(ctx)); err != nil {
		writeError(w, traceID, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Message: "Signed out successfully"})
}

func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, Response{Message: "Session is active", Data: ident})
}
