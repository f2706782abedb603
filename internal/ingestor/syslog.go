package ingestor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// UDPListenerFactory creates a UDP connection.
type UDPListenerFactory func(network, address string) (net.PacketConn, error)

// TCPListenerFactory creates a TCP listener.
type TCPListenerFactory func(network, address string) (net.Listener, error)

// SyslogOption configures the SyslogIngestor.
type SyslogOption func(*SyslogIngestor)

// WithUDPListenerFactory sets a custom UDP listener factory.
func WithUDPListenerFactory(f UDPListenerFactory) SyslogOption {
	return func(s *SyslogIngestor) {
		s.udpFactory = f
	}
}

// WithTCPListenerFactory sets a custom TCP listener factory.
func WithTCPListenerFactory(f TCPListenerFactory) SyslogOption {
	return func(s *SyslogIngestor) {
		s.tcpFactory = f
	}
}

// SyslogIngestor receives syslog messages over UDP or TCP.
type SyslogIngestor struct {
	cfg        config.SyslogIngestorConfig
	name       string
	udpFactory UDPListenerFactory
	tcpFactory TCPListenerFactory
	logger     logger.ILogger
}

// NewSyslogIngestor creates a new syslog ingestor.
func NewSyslogIngestor(cfg config.SyslogIngestorConfig, log logger.ILogger, opts ...SyslogOption) *SyslogIngestor {
	s := &SyslogIngestor{
		cfg:    cfg,
		name:   "syslog",
		logger: log.SubLogger("SyslogIngestor"),
	}

	// Default UDP factory
	s.udpFactory = func(network, address string) (net.PacketConn, error) {
		addr, err := net.ResolveUDPAddr(network, address)
		if err != nil {
			return nil, err
		}
		return net.ListenUDP(network, addr)
	}

	// Default TCP factory
	s.tcpFactory = net.Listen

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the ingestor identifier.
func (s *SyslogIngestor) Name() string {
	return s.name
}

// Start listens for syslog messages until the context is cancelled.
func (s *SyslogIngestor) Start(ctx context.Context, sink Sink) error {
	switch strings.ToLower(s.cfg.Protocol) {
	case "udp":
		return s.startUDP(ctx, sink)
	case "tcp":
		return s.startTCP(ctx, sink)
	default:
		return fmt.Errorf("unsupported syslog protocol: %s", s.cfg.Protocol)
	}
}

// startUDP listens for syslog messages over UDP.
func (s *SyslogIngestor) startUDP(ctx context.Context, sink Sink) error {
	conn, err := s.udpFactory("udp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on UDP: %w", err)
	}
	defer conn.Close()
	s.logger.Infof("listening: protocol=udp, address=%s, channel=%s", s.cfg.Address, s.cfg.Channel)

	// Unblock ReadFrom on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, 65535) // Max UDP packet size
	for {
		n, remoteAddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warningf("UDP read error: %v", err)
			continue
		}

		message := make([]byte, n)
		copy(message, buf[:n])

		entry := model.NewLogEntry(s.name, message)
		entry.Metadata["protocol"] = "udp"
		entry.Metadata["remote_addr"] = remoteAddr.String()

		// Parse syslog priority and facility if present
		s.parseSyslogHeader(entry)

		if err := emit(ctx, sink, entry, s.logger); err != nil {
			return err
		}
	}
}

// startTCP listens for syslog messages over TCP.
func (s *SyslogIngestor) startTCP(ctx context.Context, sink Sink) error {
	listener, err := s.tcpFactory("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on TCP: %w", err)
	}
	defer listener.Close()
	s.logger.Infof("listening: protocol=tcp, address=%s, channel=%s", s.cfg.Address, s.cfg.Channel)

	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warningf("TCP accept error: %v", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleTCPConnection(ctx, conn, sink)
		}()
	}
}

// handleTCPConnection reads syslog messages from a TCP connection.
func (s *SyslogIngestor) handleTCPConnection(ctx context.Context, conn net.Conn, sink Sink) {
	defer conn.Close()

	// Unblock the scanner on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Debugf("connection accepted: remote_addr=%s", remoteAddr)
	scanner := bufio.NewScanner(conn)

	// Increase buffer size for long syslog messages
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		entry := model.NewLogEntry(s.name, []byte(scanner.Text()))
		entry.Metadata["protocol"] = "tcp"
		entry.Metadata["remote_addr"] = remoteAddr

		s.parseSyslogHeader(entry)

		if err := emit(ctx, sink, entry, s.logger); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Debugf("connection closed: remote_addr=%s, error=%v", remoteAddr, err)
	}
}

// parseSyslogHeader extracts priority, facility, and severity from syslog messages.
// Supports RFC 3164 and RFC 5424 formats.
func (s *SyslogIngestor) parseSyslogHeader(entry *model.LogEntry) {
	raw := string(entry.Raw)
	if len(raw) == 0 || raw[0] != '<' {
		return
	}

	// Find closing bracket
	end := strings.Index(raw, ">")
	if end < 2 || end > 4 {
		return
	}

	// Parse priority
	var priority int
	if _, err := fmt.Sscanf(raw[1:end], "%d", &priority); err != nil {
		return
	}

	facility := priority / 8
	severity := priority % 8

	entry.Parsed["syslog_priority"] = priority
	entry.Parsed["syslog_facility"] = facility
	entry.Parsed["syslog_severity"] = severity
	entry.Parsed["syslog_facility_name"] = facilityName(facility)
	entry.Parsed["syslog_severity_name"] = severityName(severity)

	// Remove priority from raw for cleaner message
	entry.Parsed["syslog_message"] = strings.TrimSpace(raw[end+1:])
}

// facilityName returns the human-readable facility name.
func facilityName(facility int) string {
	names := []string{
		"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
		"uucp", "cron", "authpriv", "ftp", "ntp", "audit", "alert", "clock",
		"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
	}
	if facility >= 0 && facility < len(names) {
		return names[facility]
	}
	return "unknown"
}

// severityName returns the human-readable severity name.
func severityName(severity int) string {
	names := []string{
		"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug",
	}
	if severity >= 0 && severity < len(names) {
		return names[severity]
	}
	return "unknown"
}
