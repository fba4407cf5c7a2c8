package api

import (
    "crypto/sha256"
    "net/http"

    "github.com/gorilla/sessions"

    "optiguide/internal/config"
    "optiguide/internal/session"
)

const cookieName = "optiguide_session"

// newCookieStore signs the session-id cookie. Only the id travels in the
// cookie; state lives in the session backend.
func newCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
    key := sha256.Sum256([]byte(cfg.Secret))
    cs := sessions.NewCookieStore(key[:])
    cs.Options = &sessions.Options{
        Path:     "/",
        MaxAge:   int(cfg.TTL.Seconds()),
        HttpOnly: true,
        SameSite: http.SameSiteLaxMode,
    }
    return cs
}

// scoped pairs the cookie with the session state it points at.
type scoped struct {
    cookie *sessions.Session
    state  *session.Session
}

// openSession resolves the caller's session, creating one when the cookie is
// missing, tampered with, or points at an expired session.
func (s *Server) openSession(r *http.Request) (*scoped, error) {
    cs, _ := s.cookies.Get(r, cookieName)
    id, _ := cs.Values["sid"].(string)
    st, err := s.Sessions.Acquire(r.Context(), id)
    if err != nil { return nil, err }
    return &scoped{cookie: cs, state: st}, nil
}

// closeSession stores the state and refreshes the cookie. It must run before
// the response body is written.
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request, sc *scoped) error {
    if err := s.Sessions.Commit(r.Context(), sc.state); err != nil { return err }
    sc.cookie.Values["sid"] = sc.state.ID
    return sc.cookie.Save(r, w)
}
