package api

import "net/http"

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	if !h.batchGetter.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
