package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// fakeVault is an in-memory KV v2 endpoint.
type fakeVault struct {
	mu      sync.Mutex
	token   string
	secrets map[string]json.RawMessage
}

func (v *fakeVault) roundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("X-Vault-Token") != v.token {
		return jsonResponse(http.StatusForbidden, nil), nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		data, ok := v.secrets[r.URL.Path]
		if !ok {
			return jsonResponse(http.StatusNotFound, nil), nil
		}
		payload, _ := json.Marshal(map[string]any{
			"data": map[string]any{"data": data},
		})
		return jsonResponse(http.StatusOK, payload), nil
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return jsonResponse(http.StatusBadRequest, nil), nil
		}
		v.secrets[r.URL.Path] = envelope.Data
		return jsonResponse(http.StatusOK, nil), nil
	default:
		return jsonResponse(http.StatusMethodNotAllowed, nil), nil
	}
}

func jsonResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newFakeClient(token string) (*Client, *fakeVault) {
	fake := &fakeVault{token: token, secrets: make(map[string]json.RawMessage)}
	client := New("https://vault.example", token)
	client.httpClient = &http.Client{Transport: roundTripFunc(fake.roundTrip)}
	return client, fake
}

func TestClient_ReadWriteKV(t *testing.T) {
	t.Parallel()
	client, _ := newFakeClient("vault-token")
	ctx := context.Background()

	if err := client.WriteKV(ctx, "secret/data/quantapay", map[string]string{"foo": "bar"}); err != nil {
		t.Fatalf("write kv: %v", err)
	}
	var out struct {
		Foo string `json:"foo"`
	}
	if err := client.ReadKV(ctx, "secret/data/quantapay", &out); err != nil {
		t.Fatalf("read kv: %v", err)
	}
	if out.Foo != "bar" {
		t.Fatalf("unexpected read data: %v", out.Foo)
	}
}

func TestClient_ReadMissingSecret(t *testing.T) {
	t.Parallel()
	client, _ := newFakeClient("vault-token")
	var out map[string]string
	err := client.ReadKV(context.Background(), "secret/data/absent", &out)
	if !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("got %v, want ErrSecretNotFound", err)
	}
}

func TestClient_BadToken(t *testing.T) {
	t.Parallel()
	client, _ := newFakeClient("vault-token")
	client.token = "wrong"
	var out map[string]string
	if err := client.ReadKV(context.Background(), "secret/data/quantapay", &out); err == nil {
		t.Fatalf("expected auth failure")
	}
}

func TestLoadOrInitBootstrap(t *testing.T) {
	t.Parallel()
	client, fake := newFakeClient("vault-token")
	ctx := context.Background()

	first, err := LoadOrInitBootstrap(ctx, client, "secret/data/quantapay/bootstrap", 32)
	if err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if first.VaultPassphrase == "" || first.IBEGeneration != 1 {
		t.Fatalf("incomplete generated secrets: %+v", first)
	}
	master, err := first.MasterSecret()
	if err != nil {
		t.Fatalf("decode master: %v", err)
	}
	if len(master) != 32 {
		t.Fatalf("master secret length = %d", len(master))
	}
	if len(fake.secrets) != 1 {
		t.Fatalf("generated secrets not persisted")
	}

	second, err := LoadOrInitBootstrap(ctx, client, "secret/data/quantapay/bootstrap", 32)
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if second != first {
		t.Fatalf("bootstrap not stable across restarts: %+v vs %+v", second, first)
	}
}
