package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/hashing"
	"sigil/pkg/domain"
)

func TestHTTPClient_Latest(t *testing.T) {
	docKey := hashing.DocKey("doc-1")
	version := Version{
		Digest:    hashing.Digest([]byte("artifact")),
		Author:    "0x1111111111111111111111111111111111111111",
		Timestamp: 1700000000,
		Reason:    "initial-issue",
	}

	t.Run("decodes an anchored version", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/versions/latest", r.URL.Path)
			assert.Equal(t, docKey.String(), r.URL.Query().Get("doc_key"))
			_ = json.NewEncoder(w).Encode(latestResponse{Version: version, Index: 2})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, time.Second)
		got, index, err := client.Latest(context.Background(), docKey)
		require.NoError(t, err)
		assert.Equal(t, version, got)
		assert.Equal(t, 2, index)
	})

	t.Run("maps 404 to not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, time.Second)
		_, _, err := client.Latest(context.Background(), docKey)
		assert.True(t, IsNotFound(err))
		assert.False(t, IsUnavailable(err))
	})

	t.Run("maps 5xx to unavailable, never not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, time.Second)
		_, _, err := client.Latest(context.Background(), docKey)
		assert.True(t, IsUnavailable(err))
		assert.False(t, IsNotFound(err))
	})

	t.Run("maps timeout to unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, 20*time.Millisecond)
		start := time.Now()
		_, _, err := client.Latest(context.Background(), docKey)
		assert.True(t, IsUnavailable(err))
		assert.Less(t, time.Since(start), 150*time.Millisecond, "timeout must bound the call")
	})

	t.Run("maps connection refused to unavailable", func(t *testing.T) {
		client := NewHTTPClient("http://127.0.0.1:1", 100*time.Millisecond)
		_, _, err := client.Latest(context.Background(), docKey)
		assert.True(t, IsUnavailable(err))
	})
}

func TestHTTPClient_Anchor(t *testing.T) {
	docKey := hashing.DocKey("doc-2")
	digest := hashing.Digest([]byte("artifact"))

	t.Run("posts the derived key and decodes the receipt", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/anchor", r.URL.Path)

			var req anchorRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, docKey, req.DocKey)
			assert.Equal(t, digest, req.Digest)
			assert.Equal(t, "initial-issue", req.Reason)

			_ = json.NewEncoder(w).Encode(Receipt{TxRef: "0xabc", BlockRef: 42, Chain: "sepolia"})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, time.Second)
		receipt, err := client.Anchor(context.Background(), docKey, digest, "initial-issue")
		require.NoError(t, err)
		assert.Equal(t, "0xabc", receipt.TxRef)
		assert.Equal(t, int64(42), receipt.BlockRef)
	})

	t.Run("surfaces ledger rejections as plain errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "digest required"})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, time.Second)
		_, err := client.Anchor(context.Background(), docKey, "", "")
		require.Error(t, err)
		assert.False(t, IsUnavailable(err))
		assert.False(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "digest required")
	})
}

func TestHTTPClient_IssuerRegistry(t *testing.T) {
	identity := domain.Address("0x2222222222222222222222222222222222222222")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/issuers/is-active":
			assert.Equal(t, identity.String(), r.URL.Query().Get("address"))
			_ = json.NewEncoder(w).Encode(IssuerStatus{Active: true, Name: "Registrar Office"})
		case "/issuers/add":
			var req issuerRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Registrar Office", req.Name)
			_ = json.NewEncoder(w).Encode(Receipt{TxRef: "0xadd"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	status, err := client.IsIssuerActive(context.Background(), identity)
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, "Registrar Office", status.Name)

	receipt, err := client.AddIssuer(context.Background(), identity, "Registrar Office")
	require.NoError(t, err)
	assert.Equal(t, "0xadd", receipt.TxRef)
}
