package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/core/resolver"
	"github.com/artpar/recordgate/core/schema"
)

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	// Create temp file for test database
	f, err := os.CreateTemp("", "recordgate-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
	}

	return db, cleanup
}

const hostsYAML = `
records:
  - name: Host
    fields:
      - { name: address, type: SizedRegexString, max_length: 15, pattern: '\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}' }
      - { name: port, type: PositiveInteger }
`

func TestMigrate_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	got, err := db.Applied()
	if err != nil {
		t.Fatalf("Applied() error = %v", err)
	}
	want := []string{"001_schema_documents", "002_record_instances"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Applied() = %v, want %v", got, want)
	}
}

// -----------------------------------------------------------------------------
// DocumentStore Tests
// -----------------------------------------------------------------------------

func TestDocumentStore_PutAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewDocumentStore(db)
	ctx := context.Background()

	if err := store.Put(ctx, "net.hosts", schema.FormatYAML, []byte(hostsYAML)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "net.hosts")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Module != "net.hosts" {
		t.Errorf("Module = %s, want net.hosts", got.Module)
	}
	if got.Format != schema.FormatYAML {
		t.Errorf("Format = %s, want yaml", got.Format)
	}
	if string(got.Body) != hostsYAML {
		t.Errorf("Body = %q", got.Body)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	// Replace keeps the row and updates the body.
	replaced := "records: []\n"
	if err := store.Put(ctx, "net.hosts", schema.FormatYAML, []byte(replaced)); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}
	got, _ = store.Get(ctx, "net.hosts")
	if string(got.Body) != replaced {
		t.Errorf("Body after replace = %q", got.Body)
	}
}

func TestDocumentStore_PutRejectsBadDocuments(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewDocumentStore(db)
	ctx := context.Background()

	err := store.Put(ctx, "net.hosts", schema.FormatXML, []byte("<structures>"))
	if !errors.Is(err, schema.ErrSchema) {
		t.Errorf("Put(bad xml) error = %v, want ErrSchema", err)
	}

	err = store.Put(ctx, "not a name", schema.FormatYAML, []byte(hostsYAML))
	if !errors.Is(err, resolver.ErrInvalidName) {
		t.Errorf("Put(bad name) error = %v, want ErrInvalidName", err)
	}

	if _, err := store.Get(ctx, "net.hosts"); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentStore_ListAndDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewDocumentStore(db)
	ctx := context.Background()

	for _, m := range []string{"b.two", "a.one"} {
		if err := store.Put(ctx, m, schema.FormatYAML, []byte(hostsYAML)); err != nil {
			t.Fatalf("Put(%s) error = %v", m, err)
		}
	}

	docs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Module != "a.one" || docs[1].Module != "b.two" {
		t.Errorf("List() = %+v", docs)
	}

	if err := store.Delete(ctx, "a.one"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "a.one"); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentStore_AsLocator(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewDocumentStore(db)
	ctx := context.Background()
	if err := store.Put(ctx, "net.hosts", schema.FormatYAML, []byte(hostsYAML)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	r := resolver.New(resolver.WithRegistry(registry.New()), resolver.WithLocators(store))

	mod, err := r.Resolve(ctx, "net.hosts")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if mod.Source != "sqlite:net.hosts" {
		t.Errorf("Source = %s, want sqlite:net.hosts", mod.Source)
	}
	host, ok := mod.Type("Host")
	if !ok {
		t.Fatal("Host type missing")
	}
	if _, err := host.Make("10.0.0.1", 8080); err != nil {
		t.Errorf("Host(10.0.0.1, 8080) error = %v", err)
	}

	// Lookup is by full module name, not leaf.
	if _, err := r.Resolve(ctx, "other.hosts"); !errors.Is(err, resolver.ErrNotFound) {
		t.Errorf("Resolve(other.hosts) error = %v, want ErrNotFound", err)
	}
}

// -----------------------------------------------------------------------------
// InstanceStore Tests
// -----------------------------------------------------------------------------

func TestInstanceStore_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewInstanceStore(db)
	ctx := context.Background()

	inst := sqlite.Instance{
		ID:        "inst-1",
		Module:    "net.hosts",
		Record:    "Host",
		Fields:    map[string]any{"address": "10.0.0.1", "port": 8080},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Create(ctx, inst); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, "inst-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Module != "net.hosts" || got.Record != "Host" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Fields["address"] != "10.0.0.1" {
		t.Errorf("address = %v, want 10.0.0.1", got.Fields["address"])
	}
	if got.Fields["port"] != json.Number("8080") {
		t.Errorf("port = %#v, want json.Number(8080)", got.Fields["port"])
	}
	if !got.CreatedAt.Equal(inst.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, inst.CreatedAt)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInstanceStore_List(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewInstanceStore(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"a", "b", "c"} {
		inst := sqlite.Instance{
			ID:        id,
			Module:    "net.hosts",
			Record:    "Host",
			Fields:    map[string]any{"port": i},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(ctx, inst); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	other := sqlite.Instance{ID: "x", Module: "net.hosts", Record: "Route", Fields: map[string]any{}, CreatedAt: base}
	if err := store.Create(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := store.List(ctx, "net.hosts", "Host", 0, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("List() = %+v, want a, b", got)
	}

	got, err = store.List(ctx, "net.hosts", "Host", 2, 2)
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("List() page 2 = %+v, want c", got)
	}

	n, err := store.Count(ctx, "net.hosts", "Host")
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3", n, err)
	}
}
