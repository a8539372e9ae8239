package honeypot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"honeypot-service/internal/model"
	"honeypot-service/internal/util"
)

var (
	// ErrAlreadyRunning is returned when Start is called on a running listener.
	ErrAlreadyRunning = errors.New("honeypot: already running")
)

// Honeypot is a decoy listener for one emulated protocol. Start binds the
// socket and begins accepting; Stop closes the socket and lets in-flight
// sessions finish.
type Honeypot interface {
	Start() error
	Stop()
	Protocol() model.Protocol
	Host() string
	Port() int
	IsRunning() bool
}

// sessionFunc drives the scripted byte exchange for one accepted connection
// and forwards the capture through the pipeline. The connection is closed by
// the caller on every exit path.
type sessionFunc func(ctx context.Context, conn net.Conn, sourceIP string, sourcePort int, sessionID string)

// listener owns the bound socket, the accept loop and the handler fan-out
// shared by all protocol variants.
type listener struct {
	protocol model.Protocol
	pipeline *Pipeline
	session  sessionFunc

	mu      sync.Mutex
	host    string
	port    int
	ln      net.Listener
	running bool
	maxSess int
}

func newListener(protocol model.Protocol, host string, port int, pl *Pipeline, maxSessions int) listener {
	return listener{
		protocol: protocol,
		pipeline: pl,
		host:     host,
		port:     port,
		maxSess:  maxSessions,
	}
}

// Start binds the listening socket and launches the accept loop. A bind
// failure (port in use, permission denied) is returned to the caller and the
// listener stays stopped.
func (l *listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(l.host, strconv.Itoa(l.port)))
	if err != nil {
		return fmt.Errorf("failed to bind %s honeypot on %s:%d: %w", l.protocol, l.host, l.port, err)
	}
	// Resolve the kernel-assigned port when started with port 0.
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		l.port = addr.Port
	}

	l.ln = ln
	l.running = true

	// Each run gets its own admission gate, handed to the accept loop and
	// its handlers by value. Handlers from a previous run keep releasing
	// into their own gate, never into a restart's.
	var sem chan struct{}
	if l.maxSess > 0 {
		sem = make(chan struct{}, l.maxSess)
	}

	go l.acceptLoop(ln, sem)

	util.Info("Honeypot listening",
		zap.String("protocol", string(l.protocol)),
		zap.String("host", l.host),
		zap.Int("port", l.port))
	return nil
}

// Stop flips the running flag and closes the listening socket, which unblocks
// the accept loop. Sessions already accepted run to completion.
func (l *listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	l.running = false
	if l.ln != nil {
		_ = l.ln.Close()
		l.ln = nil
	}
	util.Info("Honeypot stopped",
		zap.String("protocol", string(l.protocol)),
		zap.String("host", l.host),
		zap.Int("port", l.port))
}

func (l *listener) Protocol() model.Protocol { return l.protocol }

func (l *listener) Host() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.host
}

func (l *listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

func (l *listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *listener) acceptLoop(ln net.Listener, sem chan struct{}) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.IsRunning() && !errors.Is(err, net.ErrClosed) {
				util.Error("Accept failed, stopping honeypot",
					zap.String("protocol", string(l.protocol)),
					zap.Error(err))
				l.Stop()
			}
			return
		}

		if sem != nil {
			select {
			case sem <- struct{}{}:
			default:
				// Admission gate full: shed the connection instead of
				// queueing unbounded work.
				_ = conn.Close()
				util.Warn("Session cap reached, connection dropped",
					zap.String("protocol", string(l.protocol)),
					zap.String("remote", conn.RemoteAddr().String()))
				continue
			}
		}

		go l.handleConn(conn, sem)
	}
}

func (l *listener) handleConn(conn net.Conn, sem chan struct{}) {
	defer conn.Close()
	if sem != nil {
		defer func() { <-sem }()
	}

	sourceIP, sourcePort := remoteEndpoint(conn)
	sessionID := uuid.NewString()

	util.Debug("Connection accepted",
		zap.String("protocol", string(l.protocol)),
		zap.String("source_ip", sourceIP),
		zap.Int("source_port", sourcePort),
		zap.String("session_id", sessionID))

	l.session(context.Background(), conn, sourceIP, sourcePort, sessionID)
}

func remoteEndpoint(conn net.Conn) (string, int) {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
