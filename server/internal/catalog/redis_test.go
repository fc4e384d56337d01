package catalog

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	pyscript "github.com/opendmp/python-script-processor/modules/pyscript/ext"
	"github.com/opendmp/python-script-processor/sdk/api/spi"
)

func newTestCatalog(t *testing.T) (*RedisCatalog, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c, err := NewRedisCatalog(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisCatalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestPublishLoad(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCatalog(t)

	if err := c.Publish(ctx, pyscript.Descriptor()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !mr.Exists("opendmp:plugins:python-script-processor") {
		t.Fatalf("descriptor key not written")
	}

	d, found, err := c.Load(ctx, pyscript.ServiceName)
	if err != nil || !found {
		t.Fatalf("Load = found %v, err %v", found, err)
	}
	f, ok := d.Field("code")
	if !ok || f.Type != spi.FieldCode || !f.Required || f.HelperText != "The script to execute" {
		t.Fatalf("loaded code field = %#v", f)
	}

	names, err := c.Names(ctx)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 1 || names[0] != pyscript.ServiceName {
		t.Fatalf("Names = %v", names)
	}
}

func TestLoadMissing(t *testing.T) {
	c, _ := newTestCatalog(t)
	_, found, err := c.Load(context.Background(), "missing")
	if err != nil || found {
		t.Fatalf("Load(missing) = found %v, err %v", found, err)
	}
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	c, mr := newTestCatalog(t)
	if err := mr.Set("opendmp:plugins:broken", `{"serviceName":"broken","displayName":"B","type":"SCRIPT","fields":{"x":{"type":"ENUM","required":true}}}`); err != nil {
		t.Fatal(err)
	}
	_, found, err := c.Load(context.Background(), "broken")
	if !found || !errors.Is(err, spi.ErrInvalidDescriptor) {
		t.Fatalf("Load(broken) = found %v, err %v", found, err)
	}
}

func TestPublishRejectsInvalid(t *testing.T) {
	c, mr := newTestCatalog(t)
	d := pyscript.Descriptor()
	d.ServiceName = ""
	if err := c.Publish(context.Background(), d); !errors.Is(err, spi.ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("invalid descriptor written: %v", mr.Keys())
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCatalog(t)
	if err := c.Publish(ctx, pyscript.Descriptor()); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove(ctx, pyscript.ServiceName); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, found, _ := c.Load(ctx, pyscript.ServiceName); found {
		t.Fatalf("descriptor still present after Remove")
	}
	if names, _ := c.Names(ctx); len(names) != 0 {
		t.Fatalf("Names after Remove = %v", names)
	}
}

func TestNewRedisCatalogUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisCatalog(context.Background(), addr); err == nil {
		t.Fatalf("expected error connecting to closed server")
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addrs    int
		master   string
		db       int
		password string
	}{
		{"localhost:6379", 1, "", 0, ""},
		{"redis://:pass@localhost:6379/1", 1, "", 1, "pass"},
		{"redis://host1:6379,host2:6379/0", 2, "", 0, ""},
		{"redis://host1:6379,host2?db=3", 2, "", 3, ""},
		{"redis-sentinel://localhost:26379/mymaster?db=2", 1, "mymaster", 2, ""},
	}
	for _, tt := range tests {
		opts, err := parseRedisURL(tt.url)
		if err != nil {
			t.Fatalf("parseRedisURL(%q): %v", tt.url, err)
		}
		if len(opts.Addrs) != tt.addrs {
			t.Fatalf("%q addrs = %d; want %d", tt.url, len(opts.Addrs), tt.addrs)
		}
		if opts.MasterName != tt.master {
			t.Fatalf("%q master = %q; want %q", tt.url, opts.MasterName, tt.master)
		}
		if opts.DB != tt.db {
			t.Fatalf("%q db = %d; want %d", tt.url, opts.DB, tt.db)
		}
		if opts.Password != tt.password {
			t.Fatalf("%q password = %q; want %q", tt.url, opts.Password, tt.password)
		}
	}
	for _, bad := range []string{"http://localhost:6379", "redis://localhost:6379/notanumber"} {
		if _, err := parseRedisURL(bad); err == nil {
			t.Fatalf("parseRedisURL(%q) should fail", bad)
		}
	}
}
