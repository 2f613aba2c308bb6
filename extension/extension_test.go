package extension

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/certledger/catalog"
	"github.com/xraph/certledger/types"
)

const ownerHex = "0x00000000000000000000000000000000000000ee"

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{BasePath: "/certs"}
	programmatic := Config{
		Owner:          ownerHex,
		BasePath:       "/ignored",
		DisableMigrate: true,
		PluginTimeout:  time.Second,
	}

	got := mergeConfigurations(yamlCfg, programmatic)
	if got.BasePath != "/certs" {
		t.Errorf("base path = %q, want yaml value", got.BasePath)
	}
	if got.Owner != ownerHex || !got.DisableMigrate || got.PluginTimeout != time.Second {
		t.Errorf("programmatic gaps not filled: %+v", got)
	}

	defaults := mergeWithDefaults(Config{})
	if defaults.BasePath != "/certledger" || defaults.PluginTimeout != 5*time.Second {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestBuildRequiresOwner(t *testing.T) {
	tests := []struct {
		name  string
		owner string
	}{
		{"missing", ""},
		{"malformed", "0xnothex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(WithOwner(tt.owner))
			if err := e.build(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildServesLedger(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	e := New(WithOwner(ownerHex), WithMetrics(reg), WithDisableMigrate())
	e.config = mergeWithDefaults(e.config)
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if err := e.engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.engine.Stop()

	owner := types.MustParseAddress(ownerHex)
	if _, err := e.Engine().CreateEntry(ctx, owner, catalog.Draft{Price: types.USD(100), Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if err := e.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certledger/entries/0", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET entry status = %d: %s", rec.Code, rec.Body)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "certledger_entry_created_total" {
			found = true
		}
	}
	if !found {
		t.Error("ledger metrics not registered")
	}
}

func TestDisableRoutes(t *testing.T) {
	e := New(WithOwner(ownerHex), WithDisableRoutes())
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if e.Handler() != nil {
		t.Error("routes should be disabled")
	}
	if e.Dispatcher() == nil {
		t.Error("dispatcher should still be built")
	}
}
