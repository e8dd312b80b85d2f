// Package demoserver is a small mock affiliate marketplace. It serves
// product JSON for API networks and storefront HTML for Amazon, with every
// product available in several versions that can be switched on the fly to
// demonstrate change tracking.
package demoserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/source"
)

// DemoServer serves versioned product listings.
type DemoServer struct {
	cfg      Config
	logger   logging.Logger
	products map[string]ProductDefinition
	versions map[string]int // product key -> current version
	mu       sync.RWMutex
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}

	products := make(map[string]ProductDefinition)
	versions := make(map[string]int)
	for _, p := range GetAllProducts() {
		products[p.Key()] = p
		versions[p.Key()] = cfg.InitialVersion
	}

	return &DemoServer{
		cfg:      cfg,
		logger:   logger.With(logging.Field{Key: "component", Value: "demoserver"}),
		products: products,
		versions: versions,
	}
}

// Handler returns the routes of the demo marketplace.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/dp/{asin}", s.amazonPageHandler)
	r.Get("/{network}/products/{id}", s.productHandler)

	// Control panel for version switching
	r.Get("/demo/control", s.controlPanelHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Get("/demo/get-versions", s.getVersionsHandler)
	r.Post("/demo/bump-all", s.bumpAllVersionsHandler)
	r.Post("/demo/reset", s.resetVersionsHandler)

	return r
}

// Start listens on the configured port until the process exits.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("demo marketplace starting",
		logging.Field{Key: "addr", Value: "http://localhost" + addr},
		logging.Field{Key: "control_panel", Value: "http://localhost" + addr + "/demo/control"})
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DemoServer) current(network, id string) (ProductVersion, bool) {
	key := network + "/" + id
	s.mu.RLock()
	def, ok := s.products[key]
	v := s.versions[key]
	s.mu.RUnlock()
	if !ok {
		return ProductVersion{}, false
	}
	return def.version(v), true
}

// productHandler serves {network}/products/{id} as a marketplace API record.
func (s *DemoServer) productHandler(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")
	id := chi.URLParam(r, "id")

	pv, ok := s.current(network, id)
	if !ok || network == "amazon" {
		s.logger.Debug("unknown product", logging.Field{Key: "network", Value: network}, logging.Field{Key: "id", Value: id})
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"product": productRecord(pv)})
}

func productRecord(pv ProductVersion) map[string]any {
	rec := map[string]any{source.FieldName: pv.Name}
	if pv.Vendor != "" {
		rec[source.FieldVendor] = pv.Vendor
	}
	if pv.Category != "" {
		rec[source.FieldCategory] = pv.Category
	}
	for field, v := range map[string]float64{
		source.FieldGravity:        pv.Gravity,
		source.FieldCommission:     pv.Commission,
		source.FieldRefundRate:     pv.RefundRate,
		source.FieldAvgEarnings:    pv.AvgEarnings,
		source.FieldConversionRate: pv.ConversionRate,
		source.FieldRating:         pv.Rating,
	} {
		if v != 0 {
			rec[field] = v
		}
	}
	if pv.ReviewCount != 0 {
		rec[source.FieldReviewCount] = pv.ReviewCount
	}
	return rec
}

// amazonPageHandler serves a storefront product page for an ASIN.
func (s *DemoServer) amazonPageHandler(w http.ResponseWriter, r *http.Request) {
	pv, ok := s.current("amazon", chi.URLParam(r, "asin"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := amazonPageTmpl.Execute(w, pv); err != nil {
		s.logger.Warn("rendering product page", logging.Field{Key: "error", Value: err.Error()})
	}
}

// controlPanelHandler serves the control panel for version management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := struct {
		Products map[string]ProductDefinition
		Versions map[string]int
		Port     int
	}{
		Products: s.products,
		Versions: s.versions,
		Port:     s.cfg.Port,
	}
	w.Header().Set("Content-Type", "text/html")
	_ = controlPanelTmpl.Execute(w, data)
}

// setVersionHandler sets the version for a specific product.
func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("product")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil || version < 1 {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, ok := s.products[key]
	if ok {
		s.versions[key] = version
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "Unknown product", http.StatusNotFound)
		return
	}
	s.logger.Info("product version set", logging.Field{Key: "product", Value: key}, logging.Field{Key: "version", Value: version})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"product": key,
		"version": version,
	})
}

// ProductInfo describes one product in the get-versions listing.
type ProductInfo struct {
	Key               string `json:"key"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

// getVersionsHandler returns the current versions of all products.
func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	products := make([]ProductInfo, 0, len(s.products))
	for key, def := range s.products {
		versions := make([]int, 0, len(def.Versions))
		for v := range def.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		products = append(products, ProductInfo{
			Key:               key,
			Description:       def.Description,
			CurrentVersion:    s.versions[key],
			AvailableVersions: versions,
		})
	}
	s.mu.RUnlock()

	sort.Slice(products, func(i, j int) bool { return products[i].Key < products[j].Key })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(products)
}

// bumpAllVersionsHandler increments the version of all products, capped at
// the newest available one.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for key := range s.versions {
		s.versions[key] = min(s.versions[key]+1, s.products[key].maxVersion())
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "All versions bumped",
	})
}

// resetVersionsHandler resets all products to version 1.
func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for key := range s.versions {
		s.versions[key] = 1
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "All versions reset to 1",
	})
}

var amazonPageTmpl = template.Must(template.New("amazon").Parse(`<!DOCTYPE html>
<html>
<head><title>Amazon.com: {{.Name}}</title></head>
<body>
    <div id="wayfinding-breadcrumbs_feature_div">
        <ul>{{if .Category}}<li><a href="#">{{.Category}}</a></li>{{end}}</ul>
    </div>
    <h1><span id="productTitle">  {{.Name}}  </span></h1>
    <a id="bylineInfo" href="#">Visit the {{.Vendor}} Store</a>
    {{if .Rating}}<span id="acrPopover" title="{{.Rating}} out of 5 stars"><span class="a-icon-alt">{{.Rating}} out of 5 stars</span></span>{{end}}
    {{if .ReviewCount}}<span id="acrCustomerReviewText">{{.ReviewCount}} ratings</span>{{end}}
</body>
</html>`))

var controlPanelTmpl = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Demo Marketplace Control Panel</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        h1 { color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px; }
        .card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .key { font-size: 1.2em; font-weight: bold; color: #007bff; }
        .desc { color: #666; margin: 5px 0; }
        .current { font-weight: bold; color: #28a745; }
        .btn { padding: 8px 16px; border: none; border-radius: 4px; cursor: pointer; margin-right: 6px; }
        .btn.active { background: #007bff; color: white; }
    </style>
</head>
<body>
    <h1>Demo Marketplace Control Panel</h1>
    <p>Switch product versions, then revalidate the offer to see the score change.</p>
    <button class="btn" onclick="post('/demo/bump-all')">Bump All Versions</button>
    <button class="btn" onclick="post('/demo/reset')">Reset All to v1</button>
    {{range $key, $p := .Products}}
    <div class="card">
        <span class="key">{{$key}}</span>
        <span class="current">Current: v{{index $.Versions $key}}</span>
        <div class="desc">{{$p.Description}}</div>
        {{range $v, $_ := $p.Versions}}
        <button class="btn {{if eq (index $.Versions $key) $v}}active{{end}}"
                onclick="post('/demo/set-version', 'product={{$key}}&version={{$v}}')">v{{$v}}</button>
        {{end}}
    </div>
    {{end}}
    <script>
        function post(path, body) {
            fetch(path, {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: body || ''
            }).then(() => location.reload());
        }
    </script>
</body>
</html>`))
