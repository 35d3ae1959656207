package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func trusted(t *testing.T, subnets, proxies string) http.Handler {
	t.Helper()
	mw, err := TrustedCIDR(subnets, proxies)
	require.NoError(t, err)
	return mw(okHandler())
}

func serve(h http.Handler, realIP, remote string) int {
	req := httptest.NewRequest(http.MethodPost, "/private_info", nil)
	if realIP != "" {
		req.Header.Set("X-Real-IP", realIP)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestTrustedCIDR_Empty_AllowsAll(t *testing.T) {
	require.Equal(t, http.StatusOK, serve(trusted(t, "", ""), "", ""))
}

func TestTrustedCIDR_PeerAddress(t *testing.T) {
	h := trusted(t, "10.0.0.0/24, 192.168.5.0/24", "")

	cases := []struct {
		name   string
		realIP string
		remote string
		want   int
	}{
		{"inside", "", "10.0.0.7:51234", http.StatusOK},
		{"second subnet", "", "192.168.5.1:40000", http.StatusOK},
		{"outside", "", "172.16.0.1:51234", http.StatusForbidden},
		{"spoofed header from outside", "10.0.0.42", "203.0.113.7:40000", http.StatusForbidden},
		{"header cannot lock out an inside peer", "203.0.113.7", "10.0.0.7:51234", http.StatusOK},
		{"garbage", "garbage", "garbage", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, serve(h, tc.realIP, tc.remote))
		})
	}
}

func TestTrustedCIDR_BehindProxy(t *testing.T) {
	h := trusted(t, "10.0.0.0/8", "127.0.0.1/32")

	require.Equal(t, http.StatusOK, serve(h, "10.1.2.3", "127.0.0.1:33000"))
	require.Equal(t, http.StatusForbidden, serve(h, "192.168.1.7", "127.0.0.1:33000"))
	// no header: the proxy itself is outside the subnet
	require.Equal(t, http.StatusForbidden, serve(h, "", "127.0.0.1:33000"))
	// header from a peer that is not a proxy is ignored
	require.Equal(t, http.StatusForbidden, serve(h, "10.1.2.3", "203.0.113.7:40000"))
}

func TestTrustedCIDR_Invalid(t *testing.T) {
	_, err := TrustedCIDR("wtf", "")
	require.ErrorContains(t, err, "trusted subnet")

	_, err = TrustedCIDR("10.0.0.0/8", "127.0.0.1/99")
	require.ErrorContains(t, err, "trusted proxy")
}
