package session

import (
	"errors"
	"net/http"
)

// FromRequest loads the session referenced by the request cookie.
//
// A missing, tampered, or unknown cookie yields ErrNotFound. Backend failures
// are returned as is and must be treated as a denial by callers.
func FromRequest(r *http.Request, store Store, cookies *Cookies) (*Session, error) {
	id, ok := cookies.Read(r)
	if !ok {
		return nil, ErrNotFound
	}
	sess, err := store.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, ErrNotFound
	}
	return sess, nil
}

// IsAbsent reports whether err means there is simply no session.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound)
}
