// Package provisioning serves the captive configuration portal: a one page
// form for the WiFi credentials and station code, answered over a bare
// single-connection HTTP loop.
package provisioning

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
)

const (
	connTimeout  = 10 * time.Second
	maxFormBytes = 4096
)

// ErrMalformedForm is returned by ParseForm when a field is missing or the
// body cannot be decoded.
var ErrMalformedForm = errors.New("malformed settings form")

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// ConfigStore persists the submitted settings.
type ConfigStore interface {
	SaveConfig(cfg domain.DeviceConfig) error
}

// Server answers portal requests until a valid form has been saved.
type Server struct {
	store   ConfigStore
	page    []byte
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewServer creates a Server whose form is pre-filled from current. The
// password is never echoed back.
func NewServer(store ConfigStore, current domain.DeviceConfig, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, current); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return &Server{store: store, page: page.Bytes(), metrics: metrics, logger: logger}, nil
}

// Serve accepts one connection at a time on ln. It returns the saved
// settings after the first successful save, or ctx.Err() once ctx ends.
// Failed requests are answered and the loop continues.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (domain.DeviceConfig, error) {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return domain.DeviceConfig{}, ctx.Err()
			}
			return domain.DeviceConfig{}, fmt.Errorf("accept: %w", err)
		}

		if cfg, saved := s.handle(conn); saved {
			return cfg, nil
		}
	}
}

func (s *Server) handle(conn net.Conn) (domain.DeviceConfig, bool) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))
	remote := conn.RemoteAddr().String()

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		s.logger.Debug("portal read request failed", "remote_addr", remote, "error", err)
		s.respond(conn, "invalid", http.StatusBadRequest, "text/plain", []byte("bad request"))
		return domain.DeviceConfig{}, false
	}
	defer req.Body.Close()

	if req.Method != http.MethodPost || req.URL.Path != "/save" {
		s.respond(conn, "page", http.StatusOK, "text/html; charset=utf-8", s.page)
		return domain.DeviceConfig{}, false
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxFormBytes))
	if err != nil {
		s.respond(conn, "save", http.StatusBadRequest, "text/html; charset=utf-8", []byte("<h1>Invalid settings</h1>"))
		return domain.DeviceConfig{}, false
	}

	cfg, err := ParseForm(body)
	if err != nil {
		s.logger.Warn("portal rejected settings", "remote_addr", remote, "error", err)
		s.respond(conn, "save", http.StatusBadRequest, "text/html; charset=utf-8", []byte("<h1>Invalid settings</h1>"))
		return domain.DeviceConfig{}, false
	}

	if err := s.store.SaveConfig(cfg); err != nil {
		s.logger.Error("portal save failed", "error", err)
		s.respond(conn, "save", http.StatusInternalServerError, "text/html; charset=utf-8", []byte("<h1>Save failed</h1>"))
		return domain.DeviceConfig{}, false
	}

	s.logger.Info("settings saved", "ssid", cfg.SSID, "station", cfg.StationID)
	s.respond(conn, "save", http.StatusOK, "text/html; charset=utf-8", []byte("<h1>Settings Saved!</h1>"))
	return cfg, true
}

func (s *Server) respond(w io.Writer, route string, status int, contentType string, body []byte) {
	s.metrics.PortalRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	if err := writeResponse(w, status, contentType, body); err != nil {
		s.logger.Debug("portal write response failed", "error", err)
	}
}

// writeResponse writes a complete HTTP/1.1 response that closes the
// connection.
func writeResponse(w io.Writer, status int, contentType string, body []byte) error {
	header := fmt.Sprintf("HTTP/1.1 %d %s\r\n"+
		"Content-Type: %s\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n", status, http.StatusText(status), contentType, len(body))

	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ParseForm decodes a URL-encoded save body with the fields ssid, password
// and airport, in any order. The station code is trimmed and upper-cased
// and must not be empty.
func ParseForm(body []byte) (domain.DeviceConfig, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return domain.DeviceConfig{}, fmt.Errorf("%w: %w", ErrMalformedForm, err)
	}
	for _, field := range []string{"ssid", "password", "airport"} {
		if !values.Has(field) {
			return domain.DeviceConfig{}, fmt.Errorf("%w: missing %s", ErrMalformedForm, field)
		}
	}

	station := strings.ToUpper(strings.TrimSpace(values.Get("airport")))
	if station == "" {
		return domain.DeviceConfig{}, fmt.Errorf("%w: empty airport", ErrMalformedForm)
	}
	return domain.DeviceConfig{
		SSID:      values.Get("ssid"),
		Password:  values.Get("password"),
		StationID: station,
	}, nil
}
