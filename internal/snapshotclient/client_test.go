package snapshotclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestClient_FetchDepth_Success(t *testing.T) {
	var gotURL string
	client := New("https://api.binance.com", WithHTTPClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		body := `{"lastUpdateId": 123, "bids": [["1","2"]], "asks": [["3","4"]]}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
	})))

	snap, err := client.FetchDepth(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, int64(123), snap.LastUpdateID)
	assert.Contains(t, gotURL, "symbol=BTCUSDT")
	assert.Contains(t, gotURL, "limit=1000")
}

func TestClient_FetchDepth_NonOKStatus(t *testing.T) {
	client := New("https://api.binance.com", WithHTTPClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTooManyRequests, Body: io.NopCloser(bytes.NewBufferString("{}"))}, nil
	})))

	_, err := client.FetchDepth(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}

func TestClient_FetchDepth_CustomLimit(t *testing.T) {
	var gotURL string
	client := New("https://api.binance.com", WithLimit(20), WithHTTPClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(`{"lastUpdateId":1}`))}, nil
	})))

	_, err := client.FetchDepth(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Contains(t, gotURL, "limit=20")
}
