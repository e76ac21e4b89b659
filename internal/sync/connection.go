package sync

import (
	"net"
	"os"
	"strconv"
	"time"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/routeros"
	"netbill.id/panel/pkg/logger"
)

// Conventional API ports.
const (
	DefaultPort    = 8728
	DefaultTLSPort = 8729
)

// Manager opens authenticated sessions against a router endpoint. One
// session per logical operation; nothing is pooled across requests.
type Manager struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration

	logger *logger.Logger

	// Overridable in tests.
	probe   func(addr string, timeout time.Duration) error
	dial    func(addr string, dialTimeout, readTimeout time.Duration) (Conn, error)
	dialTLS func(addr string, dialTimeout, readTimeout time.Duration) (Conn, error)
}

func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		DialTimeout: envDuration("ROUTER_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout: envDuration("ROUTER_READ_TIMEOUT", 10*time.Second),
		logger:      log,
		probe:       probeTCP,
		dial: func(addr string, dialTimeout, readTimeout time.Duration) (Conn, error) {
			return routeros.Dial(addr, dialTimeout, readTimeout)
		},
		dialTLS: func(addr string, dialTimeout, readTimeout time.Duration) (Conn, error) {
			return routeros.DialTLS(addr, dialTimeout, readTimeout)
		},
	}
}

// Connect probes reachability, then dials and logs in. A login failure
// that looks like a dead stream on a non-TLS endpoint triggers exactly
// one retry with TLS on the conventional alternate port; there is no
// retry loop beyond that.
func (m *Manager) Connect(ep models.RouterEndpoint) (Runner, error) {
	conn, _, err := m.connect(ep)
	return conn, err
}

func (m *Manager) connect(ep models.RouterEndpoint) (Runner, bool, error) {
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))

	if err := m.probe(addr, m.DialTimeout); err != nil {
		return nil, false, newError(KindNetwork, "connect "+addr, "router unreachable", err)
	}

	conn, err := m.open(ep.UseTLS, addr)
	if err == nil {
		if err = conn.Login(ep.Username, ep.Password); err == nil {
			return conn, ep.UseTLS, nil
		}
		conn.Close()
	}

	classified := Classify("login "+addr, err)
	if ep.UseTLS || classified.Kind == KindAuth || !isStreamError(err) {
		return nil, ep.UseTLS, classified
	}

	tlsAddr := net.JoinHostPort(ep.Host, strconv.Itoa(DefaultTLSPort))
	m.logger.Warn("Plain API login failed on a stream error, retrying once with TLS",
		"host", ep.Host, "error", err.Error())

	conn, err = m.open(true, tlsAddr)
	if err == nil {
		if err = conn.Login(ep.Username, ep.Password); err == nil {
			return conn, true, nil
		}
		conn.Close()
	}
	return nil, true, Classify("login "+tlsAddr, err)
}

func (m *Manager) open(useTLS bool, addr string) (Conn, error) {
	if useTLS {
		return m.dialTLS(addr, m.DialTimeout, m.ReadTimeout)
	}
	return m.dial(addr, m.DialTimeout, m.ReadTimeout)
}

// TestConnection reports whether a full connect+login succeeds.
func (m *Manager) TestConnection(ep models.RouterEndpoint) bool {
	conn, err := m.Connect(ep)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Diagnostics is the troubleshooting report: every sub-check failure
// becomes a field, none of them aborts the run.
type Diagnostics struct {
	Host          string    `json:"host"`
	Port          int       `json:"port"`
	Reachable     bool      `json:"reachable"`
	ProbeError    string    `json:"probe_error,omitempty"`
	LoginOK       bool      `json:"login_ok"`
	LoginError    string    `json:"login_error,omitempty"`
	UsedTLS       bool      `json:"used_tls"`
	Identity      string    `json:"identity,omitempty"`
	Version       string    `json:"version,omitempty"`
	Uptime        string    `json:"uptime,omitempty"`
	ResourceError string    `json:"resource_error,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	CheckedAt     time.Time `json:"checked_at"`
}

// RunDiagnostics aggregates reachability, login and service checks. It
// never returns an error.
func (m *Manager) RunDiagnostics(ep models.RouterEndpoint) Diagnostics {
	report := Diagnostics{Host: ep.Host, Port: ep.Port, CheckedAt: time.Now()}

	started := time.Now()
	if err := m.probe(net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port)), m.DialTimeout); err != nil {
		report.ProbeError = Classify("probe", err).Error()
		return report
	}
	report.Reachable = true
	report.LatencyMS = time.Since(started).Milliseconds()

	conn, usedTLS, err := m.connect(ep)
	report.UsedTLS = usedTLS
	if err != nil {
		report.LoginError = err.Error()
		return report
	}
	defer conn.Close()
	report.LoginOK = true

	if reply, err := conn.Run("/system/identity/print"); err != nil {
		report.ResourceError = Classify("identity", err).Error()
	} else if len(reply.Re) > 0 {
		report.Identity = reply.Re[0].Map["name"]
	}

	if reply, err := conn.Run("/system/resource/print"); err != nil {
		report.ResourceError = Classify("resource", err).Error()
	} else if len(reply.Re) > 0 {
		report.Version = reply.Re[0].Map["version"]
		report.Uptime = reply.Re[0].Map["uptime"]
	}

	return report
}

func probeTCP(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
