package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// DefaultPath is the endpoint path of the reference deployment
const DefaultPath = "/unityAR/getTargetCube.php"

// Server serves the directory contract over a Store
type Server struct {
	store  Store
	path   string
	logger *log.Logger
}

// NewServer creates a server answering on path. Empty path selects DefaultPath.
func NewServer(store Store, path string, logger *log.Logger) *Server {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{store: store, path: path, logger: logger}
}

// Router returns the HTTP routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc(s.path, s.handleQuery).Methods(http.MethodGet)
	return r
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Has("search"):
		text := q.Get("search")
		names, err := s.store.Search(r.Context(), text)
		if err != nil {
			s.logger.Printf("search %q failed: %v", text, err)
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, s.logger, names)

	case q.Has("destination"):
		name := q.Get("destination")
		pos, err := s.store.Lookup(r.Context(), name)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "destination not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.logger.Printf("lookup %q failed: %v", name, err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, s.logger, pos)

	default:
		http.Error(w, "expected search or destination parameter", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("failed to write response: %v", err)
	}
}
