package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	priv, pub, err := GenerateVAPIDKeys()
	require.NoError(t, err)

	c, err := New(Options{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subscriber:      "mailto:ops@example.com",
		TTL:             time.Hour,
	})
	require.NoError(t, err)
	return c
}

func newEndpoint(t *testing.T, url string) *models.DeliveryEndpoint {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &models.DeliveryEndpoint{
		ID:       "ep-1",
		UserUID:  "user-1",
		Endpoint: url,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Options{Subscriber: "mailto:ops@example.com"})
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = New(Options{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestClient_Push(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "created", status: http.StatusCreated},
		{name: "gone", status: http.StatusGone, wantErr: ErrGone},
		{name: "not found", status: http.StatusNotFound, wantErr: ErrGone},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRejected},
		{name: "server error", status: http.StatusBadGateway, wantErr: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
				assert.NotEmpty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t)
			err := c.Push(context.Background(), newEndpoint(t, srv.URL+"/push/abc"), []byte(`{"title":"t"}`))
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestClient_PushTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Push(ctx, newEndpoint(t, srv.URL), []byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGone)
}
