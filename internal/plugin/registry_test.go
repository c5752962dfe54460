package plugin_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/procgate/internal/plugin"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	})
}

func TestResolveStaticAndFactory(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Register("external_dummy", "router", plugin.Router{Prefix: "/var", Handler: okHandler("var")})
	reg.RegisterFactory("external_dummy", "get_router", func() plugin.Router {
		return plugin.Router{Prefix: "/factory", Handler: okHandler("factory")}
	})

	comps, err := reg.Resolve([]string{"external_dummy:router", "external_dummy:get_router"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("len(components) = %d, want 2", len(comps))
	}
	if comps[0].Kind != plugin.KindStatic || comps[0].Router.Prefix != "/var" {
		t.Errorf("components[0] = %+v, want static /var", comps[0])
	}
	if comps[1].Kind != plugin.KindFactory || comps[1].Router.Prefix != "/factory" {
		t.Errorf("components[1] = %+v, want factory /factory", comps[1])
	}

	rec := httptest.NewRecorder()
	comps[1].Router.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "factory" {
		t.Errorf("factory handler body = %q, want factory", rec.Body.String())
	}
}

func TestResolveInvokesFactoryOncePerLocator(t *testing.T) {
	reg := plugin.NewRegistry()
	calls := 0
	reg.RegisterFactory("m", "f", func() plugin.Router {
		calls++
		return plugin.Router{Prefix: "/f", Handler: okHandler("")}
	})

	if _, err := reg.Resolve([]string{"m:f"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
}

func TestResolveUnknownLocator(t *testing.T) {
	reg := plugin.NewRegistry()
	if _, err := reg.Resolve([]string{"missing:router"}); err == nil {
		t.Error("Resolve(missing) succeeded, want error")
	}
}

func TestResolveNilHandler(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Register("m", "empty", plugin.Router{Prefix: "/e"})
	if _, err := reg.Resolve([]string{"m:empty"}); err == nil {
		t.Error("Resolve(nil handler) succeeded, want error")
	}
}

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in      string
		module  string
		attr    string
		wantErr bool
	}{
		{"mod:attr", "mod", "attr", false},
		{" pkg.sub:get_router ", "pkg.sub", "get_router", false},
		{"noattr", "", "", true},
		{":attr", "", "", true},
		{"mod:", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		m, a, err := plugin.ParseLocator(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocator(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if m != tt.module || a != tt.attr {
			t.Errorf("ParseLocator(%q) = %q, %q; want %q, %q", tt.in, m, a, tt.module, tt.attr)
		}
	}
}

func TestListSorted(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Register("b", "x", plugin.Router{Handler: okHandler("")})
	reg.RegisterFactory("a", "y", func() plugin.Router { return plugin.Router{Handler: okHandler("")} })

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(list))
	}
	if list[0].Locator != "a:y" || list[0].Kind != plugin.KindFactory {
		t.Errorf("list[0] = %+v", list[0])
	}
	if list[1].Locator != "b:x" || list[1].Kind != plugin.KindStatic {
		t.Errorf("list[1] = %+v", list[1])
	}
}
