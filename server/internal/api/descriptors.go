package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/munnerz/goautoneg"

	"github.com/opendmp/python-script-processor/core/logx"
	"github.com/opendmp/python-script-processor/sdk/api/spi"
	"github.com/opendmp/python-script-processor/sdk/base/codec"
	"github.com/opendmp/python-script-processor/server/internal/serverstate"
)

// DescriptorSource is the read side of a descriptor registry.
type DescriptorSource interface {
	Descriptor(name string) (spi.PluginConfiguration, bool)
	Descriptors() map[string]spi.PluginConfiguration
}

// API serves plugin descriptors over HTTP.
type API struct {
	Registry DescriptorSource
	State    *serverstate.Tracker
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// mediaTypes maps the media types offered by GetPlugin to formats. Order
// breaks ties between equally weighted Accept entries.
var mediaTypes = []struct {
	mime   string
	format codec.Format
}{
	{"application/json", codec.JSON},
	{"application/yaml", codec.YAML},
	{"application/x-yaml", codec.YAML},
	{"text/yaml", codec.YAML},
	{"application/msgpack", codec.Msgpack},
	{"application/x-msgpack", codec.Msgpack},
	{"application/vnd.msgpack", codec.Msgpack},
}

// negotiate picks the response format from ?format= or the Accept header,
// honouring q-values. JSON is the default when nothing offered is acceptable.
func negotiate(r *http.Request) (codec.Format, bool) {
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := codec.ParseFormat(v)
		return f, err == nil
	}
	accept := strings.TrimSpace(r.Header.Get("Accept"))
	if accept == "" {
		return codec.JSON, true
	}
	offers := make([]string, len(mediaTypes))
	for i, m := range mediaTypes {
		offers[i] = m.mime
	}
	best := goautoneg.Negotiate(accept, offers)
	for _, m := range mediaTypes {
		if m.mime == best {
			return m.format, true
		}
	}
	return codec.JSON, true
}

// GetHealthz reports the server lifecycle state. Draining servers answer 503.
func (a *API) GetHealthz(w http.ResponseWriter, r *http.Request) {
	st := serverstate.State{Status: serverstate.Ready}
	if a.State != nil {
		st = a.State.Load()
	}
	status := http.StatusOK
	if st.Draining {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

// ListPlugins returns every registered descriptor keyed by service name.
func (a *API) ListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Registry.Descriptors())
}

// GetPlugin returns a single descriptor in the negotiated format.
func (a *API) GetPlugin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "serviceName")
	d, ok := a.Registry.Descriptor(name)
	if !ok {
		writeError(w, http.StatusNotFound, "plugin not found")
		return
	}
	f, ok := negotiate(r)
	if !ok {
		writeError(w, http.StatusNotAcceptable, "unsupported format")
		return
	}
	b, err := codec.Encode(f, d)
	if err != nil {
		logx.Log.Error().Err(err).Str("plugin", name).Msg("encode descriptor")
		writeError(w, http.StatusInternalServerError, "encode descriptor")
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	_, _ = w.Write(b)
}

// GetPluginField returns one field description. Undeclared fields are 404.
func (a *API) GetPluginField(w http.ResponseWriter, r *http.Request) {
	d, ok := a.Registry.Descriptor(chi.URLParam(r, "serviceName"))
	if !ok {
		writeError(w, http.StatusNotFound, "plugin not found")
		return
	}
	f, ok := d.Field(chi.URLParam(r, "field"))
	if !ok {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}
