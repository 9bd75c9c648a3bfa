package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/config"
	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/inbox"
	"github.com/satbox/satbox-server/internal/kv"
	"github.com/satbox/satbox-server/internal/payment"
	"github.com/satbox/satbox-server/internal/query"
	"github.com/satbox/satbox-server/internal/store/kvstore"
)

// testEnv bundles a fully wired server over in-memory storage and a
// stubbed settlement relay.
type testEnv struct {
	server   *stdhttp.Server
	backend  *kvstore.KVStore
	registry *identity.KVRegistry
}

// newTestEnv wires the API against relayHandler as the settlement relay.
func newTestEnv(t *testing.T, relayHandler stdhttp.HandlerFunc) *testEnv {
	t.Helper()

	relayServer := httptest.NewServer(relayHandler)
	t.Cleanup(relayServer.Close)

	db := kv.NewMemory()
	backend := kvstore.New(db)
	registry := identity.NewKVRegistry(db)
	disabledLogger := zerolog.New(nil)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.RelayURL = relayServer.URL
	cfg.RelayTimeout = 2 * time.Second
	cfg.RateLimitPerMin = 0 // disabled in tests

	relay := payment.NewHTTPRelay(cfg.RelayURL, cfg.Network, cfg.RelayTimeout)
	verifier := payment.NewVerifier(relay, cfg.Network, cfg.PriceSats, &disabledLogger)
	service := inbox.NewService(backend, registry, verifier, cfg.MaxContentBytes, &disabledLogger)
	engine := query.New(backend, registry, cfg.PriceSats, cfg.MaxQueryOffset, &disabledLogger)

	return &testEnv{
		server:   NewServer(service, engine, registry, &cfg, &disabledLogger),
		backend:  backend,
		registry: registry,
	}
}

// settleOK is a relay that settles everything with the given payer.
func settleOK(payer string) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"txid":"0xfeed","settlement":{"sender":"` + payer + `"}}`))
	}
}
