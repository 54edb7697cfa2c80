// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package transport

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Endpoint is the byte sink the transport writes wire packets to.
type Endpoint interface {
	Write(p []byte) (int, error)
	// Drain blocks until previously written bytes have left the device
	// buffer.
	Drain() error
	Close() error
}

// DialFunc opens a fresh endpoint. The transport calls it on start and on
// every reconnect attempt.
type DialFunc func() (Endpoint, error)

// serialEndpoint wraps a serial port.
type serialEndpoint struct {
	port serial.Port
}

func (s *serialEndpoint) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialEndpoint) Drain() error                { return s.port.Drain() }
func (s *serialEndpoint) Close() error                { return s.port.Close() }

// DialSerial returns a dialer for a serial port at 8-N-1.
func DialSerial(portName string, baudRate int) DialFunc {
	return func() (Endpoint, error) {
		mode := &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(portName, mode)
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", portName, err)
		}
		return &serialEndpoint{port: port}, nil
	}
}

// wsEndpoint wraps a WebSocket connection to a serial bridge. Each wire
// packet is sent as one binary message.
type wsEndpoint struct {
	conn *websocket.Conn
}

func (w *wsEndpoint) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsEndpoint) Drain() error { return nil }
func (w *wsEndpoint) Close() error { return w.conn.Close() }

// DialWebSocket returns a dialer for a serial-over-WebSocket bridge with
// optional HTTP Basic auth.
func DialWebSocket(wsURL, username, password string, skipTLSVerify bool) DialFunc {
	return func() (Endpoint, error) {
		u, err := url.Parse(wsURL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		switch u.Scheme {
		case "ws", "wss":
		default:
			return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		if u.Scheme == "wss" {
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipTLSVerify}
		}

		headers := http.Header{}
		if username != "" && password != "" {
			credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
			headers.Set("Authorization", "Basic "+credentials)
		}

		conn, resp, err := dialer.Dial(wsURL, headers)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket connect failed (HTTP %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("websocket connect failed: %w", err)
		}
		return &wsEndpoint{conn: conn}, nil
	}
}

// simEndpoint acknowledges writes after a token delay, standing in for real
// hardware during simulation.
type simEndpoint struct {
	delay time.Duration
}

func (s *simEndpoint) Write(p []byte) (int, error) {
	time.Sleep(s.delay)
	return len(p), nil
}

func (s *simEndpoint) Drain() error { return nil }
func (s *simEndpoint) Close() error { return nil }

// DialSimulated returns a dialer for the simulation sink.
func DialSimulated(delay time.Duration) DialFunc {
	return func() (Endpoint, error) {
		return &simEndpoint{delay: delay}, nil
	}
}
