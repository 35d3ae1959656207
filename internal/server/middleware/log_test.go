package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogMiddleware(t *testing.T) {
	core, obs := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/private_info", bytes.NewBufferString(`{"password":"hunter2"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "ok", rr.Body.String())

	entries := obs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "POST", fields["method"])
	require.EqualValues(t, http.StatusCreated, fields["status"])
	require.EqualValues(t, 2, fields["size"])
	for _, v := range fields {
		require.NotContains(t, fmt.Sprint(v), "hunter2")
	}
}

func TestLogMiddleware_DefaultStatus(t *testing.T) {
	core, obs := observer.New(zap.InfoLevel)
	h := LogMiddleware(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("resp"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "resp", rr.Body.String())
	require.EqualValues(t, http.StatusOK, obs.All()[0].ContextMap()["status"])
}
