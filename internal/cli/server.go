package cli

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/overview/pkg/buildinfo"
	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/layout"
	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/observability"
	"github.com/matzehuels/overview/pkg/overview"
	"github.com/matzehuels/overview/pkg/render/nodelink"
	"github.com/matzehuels/overview/pkg/tree"
)

// =============================================================================
// Response Types
// =============================================================================

type treeResponse struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Nodes int    `json:"nodes"`
	Heat  int    `json:"heat"`
}

type nodeResponse struct {
	ID           tree.NodeID       `json:"id"`
	Parent       tree.NodeID       `json:"parent,omitempty"`
	Path         string            `json:"path"`
	Name         string            `json:"name"`
	Depth        int               `json:"depth"`
	X            float64           `json:"x"`
	Y            float64           `json:"y"`
	Size         float64           `json:"size"`
	Files        float64           `json:"files"`
	LastModified float64           `json:"last_modified,omitempty"`
	FileTypes    map[string]uint64 `json:"file_types,omitempty"`
	Collection   *tree.Collection  `json:"collection,omitempty"`
}

type linkResponse struct {
	Parent tree.NodeID `json:"parent"`
	Child  tree.NodeID `json:"child"`
}

type hitResponse struct {
	ID   tree.NodeID `json:"id"`
	Path string      `json:"path"`
}

type dragRequest struct {
	Node  tree.NodeID `json:"node"`
	Phase string      `json:"phase"`
	DX    float64     `json:"dx"`
	DY    float64     `json:"dy"`
	Zoom  float64     `json:"zoom"`
}

type errorResponse struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// =============================================================================
// Router
// =============================================================================

// server exposes an overview over HTTP. Every handler holds the overview's
// lock while it touches trees.
type server struct {
	ov     *overview.Overview
	logger *log.Logger
}

// newRouter builds the HTTP API. gatherer serves /metrics.
func newRouter(ov *overview.Overview, gatherer prometheus.Gatherer, logger *log.Logger) http.Handler {
	s := &server{ov: ov, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, buildinfo.Current())
	})
	r.Get("/trees", s.listTrees)
	r.Route("/trees/{id}", func(r chi.Router) {
		r.Get("/nodes", s.listNodes)
		r.Get("/node", s.getNode)
		r.Get("/links", s.listLinks)
		r.Get("/hit", s.hitTest)
		r.Post("/drag", s.drag)
		r.Get("/dot", s.dot)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// instrument logs each request and reports it to the server hooks.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		observability.Server().OnRequest(r.Context(), r.Method, route, status, d)
		s.logger.Debug("request", "method", r.Method, "route", route, "status", status, "duration", d)
	})
}

// lookup resolves the {id} URL parameter. Callers must hold the lock.
func (s *server) lookup(r *http.Request) (*tree.Tree, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid tree id %q", raw)
	}
	t, ok := s.ov.Tree(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeTreeNotFound, "no open tree %s", id)
	}
	return t, nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *server) listTrees(w http.ResponseWriter, r *http.Request) {
	s.ov.Lock()
	defer s.ov.Unlock()

	out := make([]treeResponse, 0, len(s.ov.Trees()))
	for _, t := range s.ov.Trees() {
		out = append(out, treeResponse{
			ID:    t.ID().String(),
			Path:  t.Path(),
			Nodes: t.Len(),
			Heat:  s.ov.Engine().Heat(t),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listNodes(w http.ResponseWriter, r *http.Request) {
	s.ov.Lock()
	defer s.ov.Unlock()

	t, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]nodeResponse, 0, t.Len())
	for _, id := range t.Nodes() {
		n, _ := t.Node(id)
		out = append(out, newNodeResponse(t, n))
	}
	writeJSON(w, http.StatusOK, out)
}

// getNode looks a node up by its slash-separated path below the tree root.
func (s *server) getNode(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if err := errors.ValidateRelPath(path); err != nil {
		writeError(w, err)
		return
	}

	s.ov.Lock()
	defer s.ov.Unlock()

	t, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, ok := t.GetByPath(path)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no folder %q", path))
		return
	}
	writeJSON(w, http.StatusOK, newNodeResponse(t, n))
}

func newNodeResponse(t *tree.Tree, n *tree.Node) nodeResponse {
	nr := nodeResponse{
		ID:         n.ID,
		Parent:     n.Parent,
		Path:       t.PathOf(n.ID),
		Name:       n.Name,
		Depth:      n.Depth,
		X:          n.X,
		Y:          n.Y,
		Size:       n.Recursive.Sum(metric.KindSize),
		Files:      n.Recursive.Sum(metric.KindQuantity),
		Collection: n.Collection,
	}
	if m := n.Recursive.Median(metric.KindLastModified); m != nil {
		nr.LastModified = m.Mean
	}
	if h := n.Recursive.Histogram(metric.KindFileTypes); h != nil {
		nr.FileTypes = h.Counts
	}
	return nr
}

func (s *server) listLinks(w http.ResponseWriter, r *http.Request) {
	s.ov.Lock()
	defer s.ov.Unlock()

	t, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]linkResponse, 0, len(t.Links()))
	for _, l := range t.Links() {
		out = append(out, linkResponse{Parent: l.Parent, Child: l.Child})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) hitTest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "x and y must be numbers"))
		return
	}
	zoom := 1.0
	if z := q.Get("zoom"); z != "" {
		v, err := strconv.ParseFloat(z, 64)
		if err != nil || v <= 0 {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "zoom must be a positive number"))
			return
		}
		zoom = v
	}

	s.ov.Lock()
	defer s.ov.Unlock()

	t, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, ok := t.HitTest(x, y, zoom)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no node near (%g, %g)", x, y))
		return
	}
	writeJSON(w, http.StatusOK, hitResponse{ID: id, Path: t.PathOf(id)})
}

func (s *server) drag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode drag request"))
		return
	}
	phase, ok := layout.ParseDragPhase(req.Phase)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "unknown drag phase %q", req.Phase))
		return
	}
	if req.Zoom <= 0 {
		req.Zoom = 1
	}

	s.ov.Lock()
	defer s.ov.Unlock()

	t, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := t.Node(req.Node); !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no node %d", req.Node))
		return
	}
	s.ov.Engine().NodeDragged(t, req.Node, phase, layout.Point{X: req.DX, Y: req.DY}, req.Zoom)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) dot(w http.ResponseWriter, r *http.Request) {
	s.ov.Lock()
	defer s.ov.Unlock()

	t, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write([]byte(nodelink.ToDOT(t, nodelink.Options{Detailed: r.URL.Query().Has("detailed")})))
}

// =============================================================================
// Helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), errorResponse{
		Code:  string(errors.GetCode(err)),
		Error: errors.UserMessage(err),
	})
}
