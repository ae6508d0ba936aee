package client

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.akshayshah.org/attest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func getLogger(w *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

func TestSSRFSocketControl(t *testing.T) {
	t.Parallel()

	t.Run("safe control rejects private addresses", func(t *testing.T) {
		t.Parallel()

		control := ssrfSocketControl(true)
		attest.NotZero(t, control)

		err := control("tcp4", "169.254.169.254:80", nil)
		attest.Error(t, err)
		attest.True(t, strings.Contains(err.Error(), "not a public IP address"))
	})

	t.Run("safe control rejects non-tcp4/tcp6 networks", func(t *testing.T) {
		t.Parallel()

		control := ssrfSocketControl(true)
		err := control("udp", "8.8.8.8:53", nil)
		attest.Error(t, err)
		attest.True(t, strings.Contains(err.Error(), "not a safe network type"))
	})

	t.Run("unsafe control is nil", func(t *testing.T) {
		t.Parallel()

		attest.Zero(t, ssrfSocketControl(false))
	})
}

func TestIsPublicIPAddress(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		ip   string
		want bool
	}{
		{"loopback", "127.0.0.1", false},
		{"private", "10.0.0.5", false},
		{"link-local", "169.254.169.254", false},
		{"public", "8.8.8.8", true},
		{"ipv6 global unicast", "2607:f8b0::1", true},
		{"ipv6 unique local", "fd00::1", false},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := isPublicIPAddress(mustParseIP(t, tt.ip))
			attest.Equal(t, got, tt.want)
		})
	}
}

func mustParseIP(t *testing.T, s string) net.IP {
	t.Helper()
	parsed := net.ParseIP(s)
	if parsed == nil {
		t.Fatalf("not an IP: %s", s)
	}
	return parsed
}

func TestClientDo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	t.Cleanup(srv.Close)

	t.Run("logs a successful round trip", func(t *testing.T) {
		t.Parallel()

		w := &bytes.Buffer{}
		cli := UnsafeClient(getLogger(w), time.Second)

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		attest.Ok(t, err)

		res, err := cli.Do(context.Background(), req)
		attest.Ok(t, err)
		attest.Equal(t, res.StatusCode, http.StatusOK)
		res.Body.Close()

		attest.Subsequence(t, w.String(), "http_client")
	})

	t.Run("honours conditional headers", func(t *testing.T) {
		t.Parallel()

		w := &bytes.Buffer{}
		cli := UnsafeClient(getLogger(w), time.Second)

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		attest.Ok(t, err)
		req.Header.Set("If-None-Match", `"v1"`)

		res, err := cli.Do(context.Background(), req)
		attest.Ok(t, err)
		attest.Equal(t, res.StatusCode, http.StatusNotModified)
		res.Body.Close()
	})

	t.Run("logs failed requests", func(t *testing.T) {
		t.Parallel()

		w := &bytes.Buffer{}
		cli := UnsafeClient(getLogger(w), time.Second)

		req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
		attest.Ok(t, err)

		res, err := cli.Do(context.Background(), req)
		attest.Error(t, err)
		attest.Zero(t, res)
		attest.Subsequence(t, w.String(), "http_client")
	})
}
