package httpserver

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pluggable-systems/plugin-registry-backend/api"
	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
	"github.com/pluggable-systems/plugin-registry-backend/registry"
)

type handlerFixture struct {
	service      *registry.Service
	router       chi.Router
	authorityKey *ecdsa.PrivateKey
	proxy        *registry.MockUpgradeProxy
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authorityKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	proxy := new(registry.MockUpgradeProxy)
	oracle := new(registry.MockExchangeOracle)
	oracle.On("CurrentExchangeRate", mock.Anything).Return(big.NewInt(7), nil)

	genesisRef, err := interfaces.NewAddressFromHex("00000000000000000000000000000000000000aa")
	require.NoError(t, err)

	service, err := registry.NewService(&registry.ServiceConfig{
		Owner:           api.IdentityForKey(authorityKey),
		GenesisLabel:    "1.0",
		GenesisLogicRef: genesisRef,
		GenesisPayload:  interfaces.UpgradePayload{0x01, 0x02, 0x03, 0x04, 0x05},
		SetupCost:       big.NewInt(100),
		Proxy:           proxy,
		Oracle:          oracle,
		Sink:            registry.NewSlogSink(logger),
		Log:             logger,
	})
	require.NoError(t, err)

	handler := NewHandler(service, logger)

	mux := chi.NewRouter()
	mux.Get("/api/public/status", handler.HandleStatus)
	mux.Get("/api/public/version", handler.HandleVersion)
	mux.Get("/api/public/versions/{ordinal}", handler.HandleVersionAt)
	mux.Get("/api/public/bounds/{kind}", handler.HandleBound)
	mux.Get("/api/public/instances/{instance}", handler.HandleInstance)
	mux.Post("/api/admin/versions", handler.HandlePublish)
	mux.Put("/api/admin/versions/{ordinal}", handler.HandleEdit)
	mux.Put("/api/admin/bounds/{kind}", handler.HandleSetBound)
	mux.Post("/api/instances/{instance}", handler.HandleRegister)
	mux.Post("/api/instances/{instance}/upgrade", handler.HandleUpgrade)

	return &handlerFixture{
		service:      service,
		router:       mux,
		authorityKey: authorityKey,
		proxy:        proxy,
	}
}

// signedRequest builds a request and signs it with the given key. A nil key
// leaves the request unsigned.
func signedRequest(t *testing.T, key *ecdsa.PrivateKey, method, target string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != nil {
		require.NoError(t, api.SignRequest(key, req))
	}
	return req
}

func (f *handlerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandlePublish_Authority(t *testing.T) {
	f := newHandlerFixture(t)

	req := signedRequest(t, f.authorityKey, http.MethodPost, "/api/admin/versions", &api.PublishRequest{
		Label:    "1.1",
		LogicRef: "00000000000000000000000000000000000000bb",
		Payload:  []byte{0xde, 0xad, 0xbe, 0xef, 0x01},
	})
	w := f.serve(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeJSON[api.PublishResponse](t, w)
	assert.Equal(t, uint64(1), resp.Ordinal)
	assert.Equal(t, uint64(1), f.service.Ledger.HighestOrdinal())
}

func TestHandlePublish_ForeignKeyRejected(t *testing.T) {
	f := newHandlerFixture(t)

	strangerKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	req := signedRequest(t, strangerKey, http.MethodPost, "/api/admin/versions", &api.PublishRequest{
		Label:    "1.1",
		LogicRef: "00000000000000000000000000000000000000bb",
	})
	w := f.serve(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, uint64(0), f.service.Ledger.HighestOrdinal())
}

func TestHandlePublish_Unsigned(t *testing.T) {
	f := newHandlerFixture(t)

	req := signedRequest(t, nil, http.MethodPost, "/api/admin/versions", &api.PublishRequest{
		Label:    "1.1",
		LogicRef: "00000000000000000000000000000000000000bb",
	})
	w := f.serve(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlePublish_DuplicateConflict(t *testing.T) {
	f := newHandlerFixture(t)

	// Same label as the genesis entry.
	req := signedRequest(t, f.authorityKey, http.MethodPost, "/api/admin/versions", &api.PublishRequest{
		Label:    "1.0",
		LogicRef: "00000000000000000000000000000000000000bb",
	})
	w := f.serve(req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleEdit_ShortPayloadRejected(t *testing.T) {
	f := newHandlerFixture(t)

	req := signedRequest(t, f.authorityKey, http.MethodPut, "/api/admin/versions/0", &api.EditRequest{
		Label:    "1.0-patched",
		LogicRef: "00000000000000000000000000000000000000cc",
		Payload:  []byte{0x01, 0x02, 0x03, 0x04},
	})
	w := f.serve(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleVersionAt(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/public/versions/0", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[api.VersionResponse](t, w)
	assert.Equal(t, "1.0", resp.Label)

	w = f.serve(httptest.NewRequest(http.MethodGet, "/api/public/versions/7", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleBounds(t *testing.T) {
	f := newHandlerFixture(t)

	// Unset bound reads as not set.
	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/public/bounds/lower", nil))
	require.Equal(t, http.StatusOK, w.Code)
	bound := decodeJSON[api.BoundResponse](t, w)
	assert.False(t, bound.Set)

	// Authority configures the lower bound.
	req := signedRequest(t, f.authorityKey, http.MethodPut, "/api/admin/bounds/lower", &api.SetBoundRequest{Value: "1.2.0"})
	w = f.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.serve(httptest.NewRequest(http.MethodGet, "/api/public/bounds/lower", nil))
	require.Equal(t, http.StatusOK, w.Code)
	bound = decodeJSON[api.BoundResponse](t, w)
	assert.True(t, bound.Set)
	assert.Equal(t, "1.2.0", bound.Value)

	// Raising the floor is rejected, forward-only widening.
	req = signedRequest(t, f.authorityKey, http.MethodPut, "/api/admin/bounds/lower", &api.SetBoundRequest{Value: "2.0.0"})
	w = f.serve(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.serve(httptest.NewRequest(http.MethodGet, "/api/public/bounds/sideways", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRegisterAndUpgrade(t *testing.T) {
	f := newHandlerFixture(t)

	ownerKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	const instanceHex = "00000000000000000000000000000000000000f1"

	// Register the instance, pinned at the genesis frontier.
	w := f.serve(signedRequest(t, ownerKey, http.MethodPost, "/api/instances/"+instanceHex, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	record := decodeJSON[api.InstanceResponse](t, w)
	assert.Equal(t, uint64(0), record.CurrentOrdinal)
	assert.Equal(t, api.IdentityForKey(ownerKey).String(), record.Owner)

	// Registering the same instance again conflicts.
	w = f.serve(signedRequest(t, ownerKey, http.MethodPost, "/api/instances/"+instanceHex, nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	// At the frontier there is nothing to upgrade to.
	w = f.serve(signedRequest(t, ownerKey, http.MethodPost, "/api/instances/"+instanceHex+"/upgrade", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Authority publishes the next version.
	w = f.serve(signedRequest(t, f.authorityKey, http.MethodPost, "/api/admin/versions", &api.PublishRequest{
		Label:    "1.1",
		LogicRef: "00000000000000000000000000000000000000bb",
		Payload:  []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.proxy.On("ApplyUpgrade", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// Someone else's key cannot upgrade the instance.
	strangerKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	w = f.serve(signedRequest(t, strangerKey, http.MethodPost, "/api/instances/"+instanceHex+"/upgrade", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The owner steps the instance to ordinal 1.
	w = f.serve(signedRequest(t, ownerKey, http.MethodPost, "/api/instances/"+instanceHex+"/upgrade", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	upgrade := decodeJSON[api.UpgradeResponse](t, w)
	assert.Equal(t, uint64(1), upgrade.NewOrdinal)

	w = f.serve(httptest.NewRequest(http.MethodGet, "/api/public/instances/"+instanceHex, nil))
	require.Equal(t, http.StatusOK, w.Code)
	record = decodeJSON[api.InstanceResponse](t, w)
	assert.Equal(t, uint64(1), record.CurrentOrdinal)

	f.proxy.AssertExpectations(t)
}

func TestHandleStatus(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/public/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeJSON[api.StatusResponse](t, w)
	assert.Equal(t, uint64(0), status.Frontier)
	assert.Equal(t, "1.0", status.CurrentLabel)
	assert.Equal(t, 0, status.Instances)
}

func TestHandleInstance_UnknownAddress(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/public/instances/00000000000000000000000000000000000000f9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.serve(httptest.NewRequest(http.MethodGet, "/api/public/instances/nonsense", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
