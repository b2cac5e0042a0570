package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/recordgate/adapters/clock"
	apihttp "github.com/artpar/recordgate/adapters/http"
	"github.com/artpar/recordgate/adapters/idgen"
	"github.com/artpar/recordgate/adapters/metrics"
	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/core/resolver"
	"github.com/artpar/recordgate/pkg/jsonapi"
)

const hostsStruct = `<structures>
  <record name="Host">
    <field name="address" type="SizedRegexString" max_length="15" pattern="\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}"/>
    <field name="port" type="PositiveInteger"/>
  </record>
</structures>
`

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const pointsYAML = `
records:
  - name: Point
    fields:
      - { name: x, type: PositiveInteger }
      - { name: y, type: PositiveInteger }
`

type testServer struct {
	db       *sqlite.DB
	router   http.Handler
	resolver *resolver.Resolver
	reg      *prometheus.Registry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"hosts.struct": hostsStruct,
		"broken.yaml":  "records: [",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	docs := sqlite.NewDocumentStore(db)
	res := resolver.New(
		resolver.WithRegistry(registry.New()),
		resolver.WithDirs(dir),
		resolver.WithLocators(docs),
	)

	reg := prometheus.NewRegistry()
	cfg := apihttp.RouterConfig{
		Resolver:  res,
		Documents: docs,
		Instances: sqlite.NewInstanceStore(db),
		Metrics:   metrics.NewWithRegistry(reg),
		Gatherer:  reg,
		IDs:       idgen.NewSequential("inst-"),
		Clock:     clock.NewFake(epoch, time.Minute),
		Logger:    zerolog.Nop(),
		LogAccess: true,
	}
	h := apihttp.NewHandler(cfg)
	return &testServer{
		db:       db,
		router:   apihttp.NewRouter(h, cfg),
		resolver: res,
		reg:      reg,
	}
}

func (s *testServer) do(t *testing.T, method, path, contentType, body string) (*httptest.ResponseRecorder, jsonapi.Document) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var doc jsonapi.Document
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), jsonapi.ContentType) {
		if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
			t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
		}
	}
	return rec, doc
}

// resource re-decodes the primary data of doc as a single resource.
func resource(t *testing.T, doc jsonapi.Document) jsonapi.Resource {
	t.Helper()
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		t.Fatal(err)
	}
	var r jsonapi.Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("data is not a resource: %s", raw)
	}
	return r
}

func resources(t *testing.T, doc jsonapi.Document) []jsonapi.Resource {
	t.Helper()
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		t.Fatal(err)
	}
	var rs []jsonapi.Resource
	if err := json.Unmarshal(raw, &rs); err != nil {
		t.Fatalf("data is not a collection: %s", raw)
	}
	return rs
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s, want status ok", rec.Body.String())
	}
}

func TestGetModule(t *testing.T) {
	s := setupTestServer(t)

	rec, doc := s.do(t, "GET", "/modules/net.hosts", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	r := resource(t, doc)
	if r.Type != apihttp.TypeModule || r.ID != "net.hosts" {
		t.Errorf("resource = %s/%s, want modules/net.hosts", r.Type, r.ID)
	}
	records, _ := r.Attributes["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("records = %v, want one record", r.Attributes["records"])
	}
	host := records[0].(map[string]any)
	if host["name"] != "Host" {
		t.Errorf("records[0].name = %v, want Host", host["name"])
	}
	if fields, _ := host["fields"].([]any); len(fields) != 2 {
		t.Errorf("Host fields = %v, want 2", host["fields"])
	}

	rec, doc = s.do(t, "GET", "/modules", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	if rs := resources(t, doc); len(rs) != 1 || rs[0].ID != "net.hosts" {
		t.Errorf("GET /modules = %v, want [net.hosts]", rs)
	}
}

func TestGetModule_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"not found", "/modules/missing", http.StatusNotFound, "module_not_found"},
		{"invalid name", "/modules/bad-name", http.StatusBadRequest, "invalid_module_name"},
		{"malformed document", "/modules/broken", http.StatusUnprocessableEntity, "schema_error"},
	}

	s := setupTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, doc := s.do(t, "GET", tt.path, "", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.status, rec.Body.String())
			}
			if len(doc.Errors) != 1 || doc.Errors[0].Code != tt.code {
				t.Errorf("errors = %+v, want code %s", doc.Errors, tt.code)
			}
		})
	}
}

func TestCreateInstance(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		code    string
		pointer string
		check   string
	}{
		{
			name:   "positional",
			path:   "/modules/net.hosts/records/Host",
			body:   `{"args":["10.0.0.1",8080]}`,
			status: http.StatusCreated,
		},
		{
			name:   "named",
			path:   "/modules/net.hosts/records/Host",
			body:   `{"fields":{"port":22,"address":"10.0.0.2"}}`,
			status: http.StatusCreated,
		},
		{
			name:   "mixed",
			path:   "/modules/net.hosts/records/Host",
			body:   `{"args":["10.0.0.3"],"fields":{"port":443}}`,
			status: http.StatusCreated,
		},
		{
			name:    "negative port",
			path:    "/modules/net.hosts/records/Host",
			body:    `{"args":["10.0.0.1",-1]}`,
			status:  http.StatusUnprocessableEntity,
			code:    "rule_violation",
			pointer: "/fields/port",
			check:   "positive",
		},
		{
			name:    "address too long",
			path:    "/modules/net.hosts/records/Host",
			body:    `{"args":["100.100.100.1000",1]}`,
			status:  http.StatusUnprocessableEntity,
			code:    "rule_violation",
			pointer: "/fields/address",
			check:   "size",
		},
		{
			name:    "address pattern",
			path:    "/modules/net.hosts/records/Host",
			body:    `{"args":["not-an-ip",1]}`,
			status:  http.StatusUnprocessableEntity,
			code:    "rule_violation",
			pointer: "/fields/address",
			check:   "pattern",
		},
		{
			name:   "too many args",
			path:   "/modules/net.hosts/records/Host",
			body:   `{"args":["10.0.0.1",1,2]}`,
			status: http.StatusBadRequest,
			code:   "arity_mismatch",
		},
		{
			name:   "missing field",
			path:   "/modules/net.hosts/records/Host",
			body:   `{"args":["10.0.0.1"]}`,
			status: http.StatusBadRequest,
			code:   "arity_mismatch",
		},
		{
			name:    "unknown field",
			path:    "/modules/net.hosts/records/Host",
			body:    `{"args":["10.0.0.1",1],"fields":{"proto":"tcp"}}`,
			status:  http.StatusBadRequest,
			code:    "unknown_field",
			pointer: "/fields/proto",
		},
		{
			name:   "unknown record",
			path:   "/modules/net.hosts/records/Route",
			body:   `{}`,
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "unknown module",
			path:   "/modules/nowhere/records/Host",
			body:   `{}`,
			status: http.StatusNotFound,
			code:   "module_not_found",
		},
		{
			name:   "invalid json",
			path:   "/modules/net.hosts/records/Host",
			body:   `{"args":`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
	}

	s := setupTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, doc := s.do(t, "POST", tt.path, "application/json", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.code == "" {
				return
			}
			if len(doc.Errors) != 1 {
				t.Fatalf("errors = %+v, want one error", doc.Errors)
			}
			e := doc.Errors[0]
			if e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
			if tt.pointer != "" && (e.Source == nil || e.Source.Pointer != tt.pointer) {
				t.Errorf("source = %+v, want pointer %s", e.Source, tt.pointer)
			}
			if tt.check != "" && e.Meta["check"] != tt.check {
				t.Errorf("meta.check = %v, want %s", e.Meta["check"], tt.check)
			}
		})
	}
}

func TestCreateInstance_StoredAndListed(t *testing.T) {
	s := setupTestServer(t)

	rec, doc := s.do(t, "POST", "/modules/net.hosts/records/Host", "application/json", `{"args":["10.0.0.1",8080]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}
	created := resource(t, doc)
	if created.Type != apihttp.TypeInstance || created.ID != "inst-1" {
		t.Fatalf("resource = %s/%q, want instances/inst-1", created.Type, created.ID)
	}
	if got := created.Attributes["created_at"]; got != epoch.Format(time.RFC3339) {
		t.Errorf("created_at = %v, want %s", got, epoch.Format(time.RFC3339))
	}
	if loc := rec.Header().Get("Location"); loc != "/instances/"+created.ID {
		t.Errorf("Location = %q, want /instances/%s", loc, created.ID)
	}
	fields := created.Attributes["fields"].(map[string]any)
	if fields["address"] != "10.0.0.1" || fields["port"] != float64(8080) {
		t.Errorf("fields = %v, want address 10.0.0.1 port 8080", fields)
	}

	rec, doc = s.do(t, "GET", "/instances/"+created.ID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET instance status = %d, want 200", rec.Code)
	}
	if got := resource(t, doc); got.ID != created.ID || got.Attributes["record"] != "Host" {
		t.Errorf("GET instance = %+v, want %s Host", got, created.ID)
	}

	for _, body := range []string{`{"args":["10.0.0.2",1]}`, `{"args":["10.0.0.3",2]}`} {
		s.do(t, "POST", "/modules/net.hosts/records/Host", "application/json", body)
	}

	rec, doc = s.do(t, "GET", "/modules/net.hosts/records/Host?page[size]=2&page[number]=2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	if rs := resources(t, doc); len(rs) != 1 || rs[0].ID != "inst-3" {
		t.Errorf("page 2 = %+v, want only inst-3", rs)
	}
	if doc.Meta["total"] != float64(3) {
		t.Errorf("meta.total = %v, want 3", doc.Meta["total"])
	}
	if doc.Links == nil || doc.Links.Prev == "" || doc.Links.Next != "" {
		t.Errorf("links = %+v, want prev and no next", doc.Links)
	}

	rec, _ = s.do(t, "GET", "/instances/does-not-exist", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing instance status = %d, want 404", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := setupTestServer(t)

	rec, doc := s.do(t, "GET", "/nowhere", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(doc.Errors) != 1 || doc.Errors[0].Code != "not_found" {
		t.Errorf("errors = %+v, want one not_found error", doc.Errors)
	}
}

func TestStoreFailure(t *testing.T) {
	s := setupTestServer(t)
	s.db.Close()

	rec, doc := s.do(t, "GET", "/documents", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(doc.Errors) != 1 || doc.Errors[0].Code != "internal_error" {
		t.Fatalf("errors = %+v, want one internal_error", doc.Errors)
	}
	if d := doc.Errors[0].Detail; strings.Contains(d, "database") || !strings.HasPrefix(d, "request ") {
		t.Errorf("detail = %q, want the request id without internals", d)
	}
}

func TestDocuments(t *testing.T) {
	s := setupTestServer(t)

	rec, doc := s.do(t, "PUT", "/documents/geo.points?format=yaml", "", pointsYAML)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if r := resource(t, doc); r.ID != "geo.points" || r.Attributes["format"] != "yaml" {
		t.Errorf("PUT resource = %+v, want geo.points yaml", r)
	}

	rec, _ = s.do(t, "POST", "/modules/geo.points/records/Point", "application/json", `{"fields":{"x":1,"y":2}}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("construct from stored document status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	rec, doc = s.do(t, "GET", "/documents/geo.points", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	if r := resource(t, doc); r.Attributes["body"] != pointsYAML {
		t.Errorf("body = %v, want stored document", r.Attributes["body"])
	}

	rec, doc = s.do(t, "GET", "/documents", "", "")
	if rs := resources(t, doc); rec.Code != http.StatusOK || len(rs) != 1 {
		t.Errorf("GET /documents = %d %v, want one document", rec.Code, rs)
	}

	rec, _ = s.do(t, "DELETE", "/documents/geo.points", "", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}
	rec, _ = s.do(t, "DELETE", "/documents/geo.points", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rec.Code)
	}

	// Deleting the document does not unload the module.
	rec, _ = s.do(t, "GET", "/modules/geo.points", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET module after delete status = %d, want 200", rec.Code)
	}
}

func TestPutDocument_Errors(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"no format", "/documents/geo.points", "", pointsYAML, http.StatusBadRequest, "bad_request"},
		{"unknown format", "/documents/geo.points?format=toml", "", pointsYAML, http.StatusBadRequest, "bad_request"},
		{"malformed", "/documents/geo.points?format=xml", "", "<structures>", http.StatusUnprocessableEntity, "schema_error"},
		{"invalid name", "/documents/geo-points?format=yaml", "", pointsYAML, http.StatusBadRequest, "invalid_module_name"},
		{"format from content type", "/documents/geo.points", "application/yaml", pointsYAML, http.StatusOK, ""},
	}

	s := setupTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, doc := s.do(t, "PUT", tt.path, tt.contentType, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.code != "" && (len(doc.Errors) != 1 || doc.Errors[0].Code != tt.code) {
				t.Errorf("errors = %+v, want code %s", doc.Errors, tt.code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)

	s.do(t, "POST", "/modules/net.hosts/records/Host", "application/json", `{"args":["10.0.0.1",-1]}`)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`recordgate_records_constructed_total{module="net.hosts",record="Host",result="violation"} 1`,
		`recordgate_rule_violations_total{check="positive",field="port",module="net.hosts",record="Host"} 1`,
		`route="/modules/{module}/records/{record}"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestLogAccess(t *testing.T) {
	var buf bytes.Buffer
	reg := registry.New()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hosts.struct"), []byte(hostsStruct), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := apihttp.RouterConfig{
		Resolver: resolver.New(resolver.WithRegistry(reg), resolver.WithDirs(dir)),
		Logger:   zerolog.New(&buf).Level(zerolog.DebugLevel),
	}
	h := apihttp.NewHandler(cfg)
	router := apihttp.NewRouter(h, cfg)

	post := func() int {
		req := httptest.NewRequest("POST", "/modules/net.hosts/records/Host", strings.NewReader(`{"args":["10.0.0.1",80]}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(); code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", code)
	}
	if strings.Contains(buf.String(), "get port -> 80") {
		t.Errorf("field access logged with log access off:\n%s", buf.String())
	}

	h.SetLogAccess(true)
	buf.Reset()
	if code := post(); code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", code)
	}
	for _, want := range []string{`"call":"Host"`, "get port -> 80"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output missing %s:\n%s", want, buf.String())
		}
	}
}
