package feed

import (
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/spectrum.report/internal/httputil"
)

// AttachAdminRoutes adds feed stats and a live tail to the debug index.
func (h *Hub) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("feed", "Spectrum feed client and drop counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, h.Stats())
	})
	debug.HandleSilentFunc("feed-tail", h.ServeHTTP)
}
