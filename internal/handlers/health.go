package handlers

import "net/http"

// Health reports liveness. It does not touch the database.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
