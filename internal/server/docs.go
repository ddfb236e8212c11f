package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"
)

const openAPIPath = "docs/openapi.yaml"

func (s *Server) setupDocsRoutes(r *mux.Router) {
	r.HandleFunc("/openapi.yaml", s.handleOpenAPIDoc).Methods("GET")
	r.HandleFunc("/openapi.json", s.handleOpenAPIDoc).Methods("GET")
}

// handleOpenAPIDoc serves the API document, converting to JSON when the
// .json path is requested.
func (s *Server) handleOpenAPIDoc(w http.ResponseWriter, r *http.Request) {
	if filepath.Ext(r.URL.Path) != ".json" {
		w.Header().Set("Content-Type", "text/yaml")
		http.ServeFile(w, r, openAPIPath)
		return
	}

	data, err := os.ReadFile(openAPIPath)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "OpenAPI document not found")
		return
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to parse OpenAPI document")
		return
	}

	payload, err := json.MarshalIndent(normalizeYAML(doc), "", "  ")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to convert OpenAPI document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// normalizeYAML rewrites yaml.v2's map[interface{}]interface{} values into
// string-keyed maps so they survive JSON marshaling.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				continue
			}
			out[key] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
