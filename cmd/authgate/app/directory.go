package app

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// user is a directory entry served behind the gateway.
type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// directory is a fixed in-memory user list. The gateway decides who may
// read it and who may delete from it.
type directory struct {
	mu    sync.RWMutex
	users map[string]user
}

func defaultUsers() []user {
	return []user{
		{ID: "1", Name: "alice"},
		{ID: "2", Name: "bob"},
		{ID: "3", Name: "carol"},
	}
}

func newDirectory(seed []user) *directory {
	d := &directory{users: make(map[string]user, len(seed))}
	for _, u := range seed {
		d.users[u.ID] = u
	}
	return d
}

func (d *directory) list(w http.ResponseWriter, _ *http.Request) {
	d.mu.RLock()
	out := make([]user, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (d *directory) get(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	u, ok := d.users[chi.URLParam(r, "id")]
	d.mu.RUnlock()

	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (d *directory) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d.mu.Lock()
	_, ok := d.users[id]
	delete(d.users, id)
	d.mu.Unlock()

	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
