package provisioning

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/couchcryptid/metar-display/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu    sync.Mutex
	saved []domain.DeviceConfig
	err   error
}

func (m *memStore) SaveConfig(cfg domain.DeviceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, cfg)
	return nil
}

type serveResult struct {
	cfg domain.DeviceConfig
	err error
}

// startServer runs Serve on a loopback listener and returns its base URL.
func startServer(t *testing.T, ctx context.Context, st ConfigStore, metrics *observability.Metrics) (string, <-chan serveResult) {
	t.Helper()
	srv, err := NewServer(st, domain.DefaultDeviceConfig(), metrics, discardLogger())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan serveResult, 1)
	go func() {
		cfg, err := srv.Serve(ctx, ln)
		done <- serveResult{cfg, err}
	}()
	return "http://" + ln.Addr().String(), done
}

func client() *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

func postForm(t *testing.T, base, body string) (int, string) {
	t.Helper()
	resp, err := client().Post(base+"/save", "application/x-www-form-urlencoded", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func waitResult(t *testing.T, done <-chan serveResult) serveResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return serveResult{}
	}
}

func TestServe_SavePersistsToFileStore(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFileStore(dir, discardLogger())
	metrics := observability.NewMetricsForTesting()
	base, done := startServer(t, context.Background(), fs, metrics)

	status, body := postForm(t, base, "ssid=Home&password=secret&airport=KJFK")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<h1>Settings Saved!</h1>", body)

	res := waitResult(t, done)
	require.NoError(t, res.err)
	want := domain.DeviceConfig{SSID: "Home", Password: "secret", StationID: "KJFK"}
	assert.Equal(t, want, res.cfg)

	got, err := fs.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PortalRequests.WithLabelValues("save", "200")), 0)
}

func TestServe_PageForOtherRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base, _ := startServer(t, ctx, &memStore{}, observability.NewMetricsForTesting())

	for _, path := range []string{"/", "/generate_204", "/save"} {
		resp, err := client().Get(base + path)
		require.NoError(t, err)
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.True(t, resp.Close, "connection is closed after every response")
		assert.Contains(t, string(b), `action="/save"`)
		assert.Contains(t, string(b), `value="ZYTX"`, "form is pre-filled with the current station")
	}
}

func TestServe_MalformedThenValid(t *testing.T) {
	st := &memStore{}
	metrics := observability.NewMetricsForTesting()
	base, done := startServer(t, context.Background(), st, metrics)

	status, _ := postForm(t, base, "ssid=Home")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postForm(t, base, "airport=KJFK&ssid=My%20Home&password=p%26ss")
	assert.Equal(t, http.StatusOK, status)

	res := waitResult(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, domain.DeviceConfig{SSID: "My Home", Password: "p&ss", StationID: "KJFK"}, res.cfg)
	assert.Len(t, st.saved, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PortalRequests.WithLabelValues("save", "400")), 0)
}

func TestServe_StoreFailureKeepsServing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := &memStore{err: errors.New("read-only file system")}
	base, done := startServer(t, ctx, st, observability.NewMetricsForTesting())

	status, body := postForm(t, base, "ssid=Home&password=secret&airport=KJFK")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "Save failed")

	cancel()
	res := waitResult(t, done)
	require.ErrorIs(t, res.err, context.Canceled)
}

func TestServe_GarbageRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base, _ := startServer(t, ctx, &memStore{}, observability.NewMetricsForTesting())

	conn, err := net.Dial("tcp", strings.TrimPrefix(base, "http://"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "not http at all\r\n\r\n")
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The loop keeps accepting after a bad request.
	r, err := client().Get(base + "/")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestServe_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := startServer(t, ctx, &memStore{}, observability.NewMetricsForTesting())

	cancel()
	res := waitResult(t, done)
	require.ErrorIs(t, res.err, context.Canceled)
}

func TestParseForm(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    domain.DeviceConfig
		wantErr bool
	}{
		{name: "fixed order", body: "ssid=Home&password=secret&airport=KJFK",
			want: domain.DeviceConfig{SSID: "Home", Password: "secret", StationID: "KJFK"}},
		{name: "any order", body: "airport=zytx&password=&ssid=Cafe",
			want: domain.DeviceConfig{SSID: "Cafe", Password: "", StationID: "ZYTX"}},
		{name: "plus is space", body: "ssid=Home+Net&password=a%2Bb&airport=+kjfk+",
			want: domain.DeviceConfig{SSID: "Home Net", Password: "a+b", StationID: "KJFK"}},
		{name: "missing password", body: "ssid=Home&airport=KJFK", wantErr: true},
		{name: "empty airport", body: "ssid=Home&password=x&airport=", wantErr: true},
		{name: "bad escape", body: "ssid=%zz&password=x&airport=KJFK", wantErr: true},
		{name: "empty", body: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForm([]byte(tt.body))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedForm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortal_Run(t *testing.T) {
	addrCh := make(chan net.Addr, 1)
	st := &memStore{}
	p := &Portal{
		Addr:        "127.0.0.1:0",
		Store:       st,
		Metrics:     observability.NewMetricsForTesting(),
		Logger:      discardLogger(),
		OnListening: func(a net.Addr) { addrCh <- a },
	}

	done := make(chan serveResult, 1)
	go func() {
		cfg, err := p.Run(context.Background(), domain.DeviceConfig{StationID: "EGLL"})
		done <- serveResult{cfg, err}
	}()

	var base string
	select {
	case a := <-addrCh:
		base = "http://" + a.String()
	case <-time.After(5 * time.Second):
		t.Fatal("portal did not start listening")
	}

	resp, err := client().Get(base + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), `value="EGLL"`)

	status, _ := postForm(t, base, "ssid=Home&password=secret&airport=EGKK")
	assert.Equal(t, http.StatusOK, status)

	res := waitResult(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, "EGKK", res.cfg.StationID)
}

func TestPortal_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	p := &Portal{Addr: ln.Addr().String(), Store: &memStore{}, Metrics: observability.NewMetricsForTesting(), Logger: discardLogger()}
	_, err = p.Run(context.Background(), domain.DefaultDeviceConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
