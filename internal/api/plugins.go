package api

import (
	"net/http"

	"github.com/seantiz/procgate/internal/plugin"
)

// Built-in plugin locators.
const (
	BuiltinModule = "procgate"
	LocatorInfo   = BuiltinModule + ":info"
	LocatorLivez  = BuiltinModule + ":livez"
)

type infoResponse struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// RegisterBuiltins adds the components shipped with procgate: "procgate:livez"
// is a static liveness router and "procgate:info" a factory reporting the
// application title and version.
func RegisterBuiltins(reg *plugin.Registry, title, version string) {
	reg.Register(BuiltinModule, "livez", plugin.Router{
		Prefix: "/livez",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok\n"))
		}),
	})
	reg.RegisterFactory(BuiltinModule, "info", func() plugin.Router {
		body := infoResponse{Title: title, Version: version}
		return plugin.Router{
			Prefix: "/info",
			Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSONBody(w, http.StatusOK, body)
			}),
		}
	})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.plugins.List())
}
