package honeypot

import (
	"context"
	"fmt"
	"net"
	"strings"

	"honeypot-service/internal/model"
)

const httpRecvSize = 4096

// One fixed decoy page, served for every request.
const httpFakeResponse = "HTTP/1.1 200 OK\r\n" +
	"Server: Apache/2.4.41 (Ubuntu)\r\n" +
	"Content-Type: text/html; charset=UTF-8\r\n" +
	"Content-Length: 45\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"<html><body><h1>It works!</h1></body></html>"

var httpKnownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "HEAD": true,
	"OPTIONS": true, "PATCH": true, "TRACE": true, "CONNECT": true,
}

// HTTPHoneypot mimics an Apache server to detect web probes and scans. The
// request is parsed only to summarize method, path and headers; the decoy
// response never varies.
type HTTPHoneypot struct {
	listener
}

func NewHTTPHoneypot(host string, port int, pl *Pipeline, maxSessions int) *HTTPHoneypot {
	h := &HTTPHoneypot{
		listener: newListener(model.ProtocolHTTP, host, port, pl, maxSessions),
	}
	h.listener.session = h.runSession
	return h
}

func (h *HTTPHoneypot) runSession(ctx context.Context, conn net.Conn, sourceIP string, sourcePort int, sessionID string) {
	var rawRequest string

	buf := make([]byte, httpRecvSize)
	n, _ := conn.Read(buf)
	if n > 0 {
		rawRequest = string(buf[:n])
	}
	// The decoy page goes out regardless of what was read; write errors end
	// the session like any other disconnect.
	_, _ = conn.Write([]byte(httpFakeResponse))
	_ = conn.Close()

	h.pipeline.Record(ctx, Capture{
		SourceIP:   sourceIP,
		SourcePort: sourcePort,
		Protocol:   model.ProtocolHTTP,
		AttackType: model.AttackHTTPProbe,
		Payload:    parseHTTPRequest(rawRequest),
		SessionID:  sessionID,
	})
}

// parseHTTPRequest extracts method, path and headers from a raw request.
// Unknown methods collapse to UNKNOWN and the path defaults to "/"; malformed
// input falls back to the raw text.
func parseHTTPRequest(raw string) string {
	lines := splitLines(raw)
	if len(lines) == 0 {
		return raw
	}

	parts := strings.Fields(lines[0])
	method := "UNKNOWN"
	if len(parts) > 0 && httpKnownMethods[parts[0]] {
		method = parts[0]
	}
	path := "/"
	if len(parts) > 1 {
		path = parts[1]
	}

	headers := make(map[string]string)
	for _, line := range lines[1:] {
		if i := strings.Index(line, ":"); i >= 0 {
			headers[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}

	return fmt.Sprintf("method=%s path=%s headers=%v", method, path, headers)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
