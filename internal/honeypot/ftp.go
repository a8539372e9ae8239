package honeypot

import (
	"context"
	"fmt"
	"net"
	"strings"

	"honeypot-service/internal/model"
)

const (
	ftpRecvSize   = 1024
	ftpBanner     = "220 FTP Server Ready\r\n"
	ftpUserOK     = "331 Password required\r\n"
	ftpPassFail   = "530 Login incorrect\r\n"
	ftpGenericErr = "500 Command not understood\r\n"
	ftpMaxTurns   = 4
)

// FTPHoneypot mimics an FTP login sequence to capture credential brute-force
// attempts. Every PASS is rejected; the captured payload is the USER/PASS
// pair.
type FTPHoneypot struct {
	listener
}

func NewFTPHoneypot(host string, port int, pl *Pipeline, maxSessions int) *FTPHoneypot {
	h := &FTPHoneypot{
		listener: newListener(model.ProtocolFTP, host, port, pl, maxSessions),
	}
	h.listener.session = h.runSession
	return h
}

func (h *FTPHoneypot) runSession(ctx context.Context, conn net.Conn, sourceIP string, sourcePort int, sessionID string) {
	var username, password string

	if _, err := conn.Write([]byte(ftpBanner)); err == nil {
		buf := make([]byte, ftpRecvSize)
		// Collect up to USER + PASS within a few turns.
	turns:
		for turn := 0; turn < ftpMaxTurns; turn++ {
			n, err := conn.Read(buf)
			if err != nil || n == 0 {
				break
			}
			line := strings.TrimSpace(string(buf[:n]))
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "USER"):
				username = strings.TrimSpace(line[4:])
				if _, err := conn.Write([]byte(ftpUserOK)); err != nil {
					break turns
				}
			case strings.HasPrefix(upper, "PASS"):
				password = strings.TrimSpace(line[4:])
				_, _ = conn.Write([]byte(ftpPassFail))
				break turns
			default:
				if _, err := conn.Write([]byte(ftpGenericErr)); err != nil {
					break turns
				}
			}
		}
	}
	_ = conn.Close()

	h.pipeline.Record(ctx, Capture{
		SourceIP:   sourceIP,
		SourcePort: sourcePort,
		Protocol:   model.ProtocolFTP,
		AttackType: model.AttackFTPBruteForce,
		Payload:    fmt.Sprintf("USER=%s PASS=%s", username, password),
		SessionID:  sessionID,
	})
}
