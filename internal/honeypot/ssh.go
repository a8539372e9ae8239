package honeypot

import (
	"context"
	"net"
	"strings"
	"time"

	"honeypot-service/internal/model"
)

const (
	sshBanner      = "SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.3\r\n"
	sshRecvSize    = 1024
	sshReadTimeout = 30 * time.Second
)

// SSHHoneypot mimics an SSH server banner exchange to capture brute-force
// attempts. No key exchange happens; whatever bytes the client sends after
// the banner become the payload.
type SSHHoneypot struct {
	listener
}

func NewSSHHoneypot(host string, port int, pl *Pipeline, maxSessions int) *SSHHoneypot {
	h := &SSHHoneypot{
		listener: newListener(model.ProtocolSSH, host, port, pl, maxSessions),
	}
	h.listener.session = h.runSession
	return h
}

func (h *SSHHoneypot) runSession(ctx context.Context, conn net.Conn, sourceIP string, sourcePort int, sessionID string) {
	var raw string

	// Timeouts and I/O errors are expected here; the session still closes
	// and whatever was read is captured.
	_ = conn.SetDeadline(time.Now().Add(sshReadTimeout))
	if _, err := conn.Write([]byte(sshBanner)); err == nil {
		buf := make([]byte, sshRecvSize)
		n, _ := conn.Read(buf)
		if n > 0 {
			raw = strings.TrimSpace(string(buf[:n]))
		}
	}
	_ = conn.Close()

	h.pipeline.Record(ctx, Capture{
		SourceIP:   sourceIP,
		SourcePort: sourcePort,
		Protocol:   model.ProtocolSSH,
		AttackType: model.AttackSSHBruteForce,
		Payload:    raw,
		SessionID:  sessionID,
	})
}
