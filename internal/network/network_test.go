package network

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSendsRequest(t *testing.T) {
	var gotMethod, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewHTTPService("test")
	resp, err := s.Connect(context.Background(), Request{
		URL:     srv.URL + "/collect",
		Body:    []byte(`{"a":1}`),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "application/json", gotHeader)
	assert.False(t, Recoverable(resp, err))
}

func TestConnectDefaultsToGet(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	_, err := NewHTTPService("test").Connect(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPService("flaky", WithBreaker(BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}))
	for range 2 {
		resp, err := s.Connect(context.Background(), Request{URL: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.True(t, Recoverable(resp, err))
	}
	assert.Equal(t, "open", s.State())

	resp, err := s.Connect(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.True(t, Recoverable(resp, err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnectTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	resp, err := NewHTTPService("down").Connect(context.Background(), Request{URL: url, ConnectTimeout: time.Second})
	require.Error(t, err)
	assert.True(t, Recoverable(resp, err))
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := NewHTTPService("test").Connect(context.Background(), Request{})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, Recoverable(nil, err))
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusNoContent, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recoverable(&Response{StatusCode: tt.status}, nil), "status %d", tt.status)
	}
	assert.True(t, Recoverable(nil, stderrors.New("reset")))
}
