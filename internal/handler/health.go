package handler

import "net/http"

// HandleHealthz serves GET /healthz for load balancers and process supervisors.
// It never touches the executors; see /api/remote/health for Judge0.
func HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
