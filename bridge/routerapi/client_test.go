package routerapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/routerapi"
	"github.com/zeebo/assert"
)

func testConfig() routerapi.FailoverConfig {
	return routerapi.FailoverConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		HealthPath: "/health",
		Timeout:    2 * time.Second,
	}
}

func TestRoute(t *testing.T) {
	var got models.RouteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/v2/fungible/route")
		assert.Equal(t, r.Method, http.MethodPost)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"amount_in":"100","amount_out":"99","operations":[{"transfer":{"from_chain_id":"a","to_chain_id":"b"},"tx_index":0}],"required_chain_addresses":["a","b"]}`))
	}))
	defer srv.Close()

	client, err := routerapi.NewClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)
	defer client.Close()

	route, err := client.Route(context.Background(), models.RouteRequest{
		AmountIn:           "100",
		SourceAssetDenom:   "uinit",
		SourceAssetChainID: "a",
		DestAssetDenom:     "uinit",
		DestAssetChainID:   "b",
		IsOpWithdraw:       true,
	})
	assert.NoError(t, err)
	assert.Equal(t, route.AmountOut, "99")
	assert.Equal(t, len(route.Operations), 1)
	assert.True(t, got.IsOpWithdraw)
	assert.Equal(t, got.SourceAssetChainID, "a")
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":3,"message":"no routes found"}`))
	}))
	defer srv.Close()

	client, err := routerapi.NewClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	_, err = client.Route(context.Background(), models.RouteRequest{AmountIn: "1"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, routerapi.ErrRemote))

	var remote *routerapi.RemoteError
	assert.True(t, errors.As(err, &remote))
	assert.Equal(t, remote.StatusCode, http.StatusBadRequest)
	assert.Equal(t, remote.Message, "no routes found")
	assert.Equal(t, calls.Load(), int32(1))
}

func TestServerErrorFailsOverToBackup(t *testing.T) {
	var primaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer primary.Close()

	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`{"chains":[{"chain_id":"interwoven-1","chain_name":"initia","bech32_prefix":"init"}]}`))
	}))
	defer backup.Close()

	client, err := routerapi.NewClientWithFailover(primary.URL, []string{backup.URL}, testConfig())
	assert.NoError(t, err)

	chains, err := client.Chains(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(chains), 1)
	assert.Equal(t, chains[0].Bech32Prefix, "init")
	assert.Equal(t, primaryCalls.Load(), int32(2))
	assert.Equal(t, client.CurrentURL(), backup.URL)
}

func TestCurrentURLReadableDuringSlowHealthCheck(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer primary.Close()

	checking := make(chan struct{})
	release := make(chan struct{})
	var once atomic.Bool
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			if once.CompareAndSwap(false, true) {
				close(checking)
			}
			<-release
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`{"chains":[]}`))
	}))
	defer backup.Close()

	client, err := routerapi.NewClientWithFailover(primary.URL, []string{backup.URL}, testConfig())
	assert.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := client.Chains(context.Background())
		done <- err
	}()

	<-checking
	read := make(chan string, 1)
	go func() { read <- client.CurrentURL() }()
	select {
	case u := <-read:
		assert.Equal(t, u, primary.URL)
	case <-time.After(time.Second):
		t.Fatal("CurrentURL blocked while an endpoint was being checked")
	}

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, client.CurrentURL(), backup.URL)
}

func TestCancelledRequestReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := routerapi.NewClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = client.Route(ctx, models.RouteRequest{AmountIn: "1"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, routerapi.ErrRemote))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := routerapi.NewClient("not a url")
	assert.Error(t, err)
}
