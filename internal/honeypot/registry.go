package honeypot

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"honeypot-service/internal/config"
	"honeypot-service/internal/model"
)

var (
	ErrUnknownProtocol = errors.New("honeypot: unknown protocol")
	ErrNotRunning      = errors.New("honeypot: not running")
)

// Status is the projection of one registered listener exposed to the
// management API.
type Status struct {
	Protocol  model.Protocol `json:"type"`
	Host      string         `json:"host"`
	Port      int            `json:"port"`
	IsRunning bool           `json:"is_running"`
}

// Registry tracks at most one listener per protocol and drives the
// start/stop/list commands.
type Registry struct {
	mu        sync.Mutex
	honeypots map[model.Protocol]Honeypot
	pipeline  *Pipeline
	cfg       config.HoneypotConfig
}

func NewRegistry(cfg config.HoneypotConfig, pl *Pipeline) *Registry {
	return &Registry{
		honeypots: make(map[model.Protocol]Honeypot),
		pipeline:  pl,
		cfg:       cfg,
	}
}

// Start builds and starts the listener for a protocol. Empty host and zero
// port fall back to the configured defaults. Starting a protocol that is
// already running fails with ErrAlreadyRunning.
func (r *Registry) Start(protocol, host string, port int) (Status, error) {
	proto, err := parseProtocol(protocol)
	if err != nil {
		return Status{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if hp, ok := r.honeypots[proto]; ok && hp.IsRunning() {
		return Status{}, fmt.Errorf("%w: %s honeypot", ErrAlreadyRunning, proto)
	}

	if host == "" {
		host = r.cfg.Host
	}
	if port == 0 {
		port = r.defaultPort(proto)
	}

	var hp Honeypot
	switch proto {
	case model.ProtocolSSH:
		hp = NewSSHHoneypot(host, port, r.pipeline, r.cfg.MaxSessions)
	case model.ProtocolHTTP:
		hp = NewHTTPHoneypot(host, port, r.pipeline, r.cfg.MaxSessions)
	case model.ProtocolFTP:
		hp = NewFTPHoneypot(host, port, r.pipeline, r.cfg.MaxSessions)
	}

	if err := hp.Start(); err != nil {
		return Status{}, err
	}
	r.honeypots[proto] = hp
	return statusOf(hp), nil
}

// Stop stops the listener for a protocol and removes it from the registry.
func (r *Registry) Stop(protocol string) error {
	proto, err := parseProtocol(protocol)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hp, ok := r.honeypots[proto]
	if !ok || !hp.IsRunning() {
		return fmt.Errorf("%w: %s honeypot", ErrNotRunning, proto)
	}
	hp.Stop()
	delete(r.honeypots, proto)
	return nil
}

// StopAll stops every registered listener. Used during shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for proto, hp := range r.honeypots {
		hp.Stop()
		delete(r.honeypots, proto)
	}
}

// List returns the status of every registered listener.
func (r *Registry) List() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.honeypots))
	for _, hp := range r.honeypots {
		statuses = append(statuses, statusOf(hp))
	}
	return statuses
}

// StartConfigured starts the protocols named in the autostart list
// concurrently; the first bind failure aborts the remaining starts.
func (r *Registry) StartConfigured(protocols []string) error {
	var g errgroup.Group
	for _, name := range protocols {
		name := name
		g.Go(func() error {
			_, err := r.Start(name, "", 0)
			return err
		})
	}
	return g.Wait()
}

func (r *Registry) defaultPort(proto model.Protocol) int {
	switch proto {
	case model.ProtocolSSH:
		return r.cfg.SSHPort
	case model.ProtocolHTTP:
		return r.cfg.HTTPPort
	case model.ProtocolFTP:
		return r.cfg.FTPPort
	}
	return 0
}

func statusOf(hp Honeypot) Status {
	return Status{
		Protocol:  hp.Protocol(),
		Host:      hp.Host(),
		Port:      hp.Port(),
		IsRunning: hp.IsRunning(),
	}
}

func parseProtocol(s string) (model.Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ssh":
		return model.ProtocolSSH, nil
	case "http":
		return model.ProtocolHTTP, nil
	case "ftp":
		return model.ProtocolFTP, nil
	}
	return "", fmt.Errorf("%w: %q (valid: ssh, http, ftp)", ErrUnknownProtocol, s)
}
