package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mbocsi/hostbridge/scene"
)

type objectInfo struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Location    [3]float64 `json:"location"`
	Rotation    [3]float64 `json:"rotation"`
	Scale       [3]float64 `json:"scale"`
	Visible     bool       `json:"visible"`
	BoundingBox [6]float64 `json:"world_bounding_box"`
}

func convertObject(o scene.Object) objectInfo {
	return objectInfo{
		Name:        o.Name,
		Type:        string(o.Kind),
		Location:    o.Location,
		Rotation:    o.Rotation,
		Scale:       o.Scale,
		Visible:     o.Visible,
		BoundingBox: o.BoundingBox(),
	}
}

func (w *WebServer) HandleHome(wr http.ResponseWriter, r *http.Request) {
	objects := w.doc.List()
	infos := make([]objectInfo, 0, len(objects))
	for _, o := range objects {
		infos = append(infos, convertObject(o))
	}

	w.templates.RenderPage(wr, map[string]any{
		"Uptime":     time.Since(w.started).Round(time.Second),
		"Scene":      w.doc.Name(),
		"Objects":    infos,
		"Materials":  w.doc.Materials(),
		"Transports": w.source.Transports(),
		"Commands":   w.source.Dispatcher().Describe(),
	})
}

func (w *WebServer) HandleHealth(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(w.started).Round(time.Second).String(),
	})
}

func (w *WebServer) HandleTransports(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.source.Transports())
}

func (w *WebServer) HandleCommands(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.source.Dispatcher().Describe())
}

func (w *WebServer) HandleScene(wr http.ResponseWriter, r *http.Request) {
	objects := w.doc.List()
	infos := make([]objectInfo, 0, len(objects))
	for _, o := range objects {
		infos = append(infos, convertObject(o))
	}
	writeJSON(wr, http.StatusOK, map[string]any{
		"name":      w.doc.Name(),
		"objects":   infos,
		"materials": w.doc.Materials(),
	})
}

func (w *WebServer) HandleObject(wr http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	obj, err := w.doc.Get(name)
	if err != nil {
		w.handleError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, convertObject(obj))
}

// handleError maps scene errors onto HTTP status codes.
func (w *WebServer) handleError(wr http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scene.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, scene.ErrInvalidName):
		status = http.StatusBadRequest
	default:
		slog.Error("Web request failed", "error", err)
	}
	writeJSON(wr, status, map[string]string{"error": err.Error()})
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}
