package gateway

import (
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/throttlite/throttlite/internal/throttle"
)

// API exposes the throttle engine's operations over HTTP.
type API struct {
	engine *throttle.Throttler

	// onWindowChange is invoked after a successful window update, e.g. to
	// move a metrics gauge. May be nil.
	onWindowChange func(window int64)
}

func NewAPI(engine *throttle.Throttler, onWindowChange func(int64)) *API {
	return &API{engine: engine, onWindowChange: onWindowChange}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/decide", a.decide)
	mux.HandleFunc("GET /v1/window", a.getWindow)
	mux.HandleFunc("PUT /v1/window", a.setWindow)
	mux.HandleFunc("POST /v1/clear", a.clear)
	mux.HandleFunc("GET /v1/keys", a.keys)
}

type decideRequest struct {
	Timestamp int64  `json:"timestamp"`
	EventID   string `json:"event_id"`
	Key       string `json:"key"`
}

type decideResponse struct {
	Accepted bool  `json:"accepted"`
	Window   int64 `json:"window"`
}

// decide runs one event through the engine. Empty keys and zero or negative
// timestamps are legal inputs and go straight to the arithmetic rule; only
// unparseable bodies are rejected.
func (a *API) decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := decode(r.Body, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	accepted := a.engine.ShouldProcess(req.Timestamp, req.EventID, req.Key)
	writeJSON(w, http.StatusOK, decideResponse{
		Accepted: accepted,
		Window:   a.engine.Window(),
	})
}

type windowBody struct {
	Window int64 `json:"window"`
}

func (a *API) getWindow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, windowBody{Window: a.engine.Window()})
}

// setWindow accepts any integer, including zero and negatives; the engine
// does not guard against degenerate windows and neither does the API.
func (a *API) setWindow(w http.ResponseWriter, r *http.Request) {
	var req windowBody
	if err := decode(r.Body, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	a.engine.SetWindow(req.Window)
	if a.onWindowChange != nil {
		a.onWindowChange(req.Window)
	}
	writeJSON(w, http.StatusOK, windowBody{Window: a.engine.Window()})
}

func (a *API) clear(w http.ResponseWriter, _ *http.Request) {
	removed := a.engine.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"cleared":      true,
		"keys_removed": removed,
	})
}

func (a *API) keys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": a.engine.KeyCount()})
}

func decode(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"code":"` + errCode + `","message":"` + msg + `"}}`))
}
