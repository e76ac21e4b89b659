package sync

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/routeros"
)

func testEndpoint() models.RouterEndpoint {
	return models.RouterEndpoint{
		ID: 1, Name: "core", Host: "10.0.0.1", Port: DefaultPort,
		Username: "api", Password: "pw",
	}
}

func testManager() *Manager {
	m := NewManager(testLogger())
	m.probe = func(addr string, timeout time.Duration) error { return nil }
	return m
}

func TestConnectPlainSuccess(t *testing.T) {
	m := testManager()
	conn := &fakeConn{}
	m.dial = func(addr string, d, r time.Duration) (Conn, error) { return conn, nil }
	m.dialTLS = func(addr string, d, r time.Duration) (Conn, error) {
		t.Fatal("TLS dial must not run when plain login succeeds")
		return nil, nil
	}

	got, err := m.Connect(testEndpoint())
	require.NoError(t, err)
	assert.Equal(t, conn, got)
}

func TestConnectUnreachable(t *testing.T) {
	m := testManager()
	m.probe = func(addr string, timeout time.Duration) error { return errors.New("no route to host") }

	_, err := m.Connect(testEndpoint())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestConnectRetriesWithTLSOnStreamError(t *testing.T) {
	m := testManager()
	plain := &fakeConn{loginErr: io.EOF}
	tlsConn := &fakeConn{}

	var tlsAddr string
	m.dial = func(addr string, d, r time.Duration) (Conn, error) { return plain, nil }
	m.dialTLS = func(addr string, d, r time.Duration) (Conn, error) {
		tlsAddr = addr
		return tlsConn, nil
	}

	got, err := m.Connect(testEndpoint())
	require.NoError(t, err)
	assert.Equal(t, tlsConn, got)
	assert.True(t, plain.closed)
	assert.Equal(t, "10.0.0.1:8729", tlsAddr)
}

func TestConnectNoTLSRetryOnAuthError(t *testing.T) {
	m := testManager()
	plain := &fakeConn{loginErr: &routeros.TrapError{Message: "invalid user name or password"}}
	m.dial = func(addr string, d, r time.Duration) (Conn, error) { return plain, nil }
	m.dialTLS = func(addr string, d, r time.Duration) (Conn, error) {
		t.Fatal("auth rejection must not trigger a TLS retry")
		return nil, nil
	}

	_, err := m.Connect(testEndpoint())
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestConnectSingleTLSRetryOnly(t *testing.T) {
	m := testManager()
	dials := 0
	tlsDials := 0
	m.dial = func(addr string, d, r time.Duration) (Conn, error) {
		dials++
		return &fakeConn{loginErr: timeoutError{}}, nil
	}
	m.dialTLS = func(addr string, d, r time.Duration) (Conn, error) {
		tlsDials++
		return &fakeConn{loginErr: timeoutError{}}, nil
	}

	_, err := m.Connect(testEndpoint())
	require.Error(t, err)
	assert.Equal(t, 1, dials)
	assert.Equal(t, 1, tlsDials)
}

func TestConnectTLSEndpointNeverFallsBack(t *testing.T) {
	m := testManager()
	tlsDials := 0
	m.dial = func(addr string, d, r time.Duration) (Conn, error) {
		t.Fatal("TLS endpoint must not use the plain dialer")
		return nil, nil
	}
	m.dialTLS = func(addr string, d, r time.Duration) (Conn, error) {
		tlsDials++
		return &fakeConn{loginErr: io.EOF}, nil
	}

	ep := testEndpoint()
	ep.UseTLS = true
	ep.Port = DefaultTLSPort

	_, err := m.Connect(ep)
	require.Error(t, err)
	assert.Equal(t, 1, tlsDials)
}

func TestRunDiagnosticsUnreachable(t *testing.T) {
	m := testManager()
	m.probe = func(addr string, timeout time.Duration) error { return errors.New("no route to host") }

	report := m.RunDiagnostics(testEndpoint())
	assert.False(t, report.Reachable)
	assert.NotEmpty(t, report.ProbeError)
	assert.False(t, report.LoginOK)
}

func TestRunDiagnosticsFullReport(t *testing.T) {
	m := testManager()
	conn := &fakeConn{}
	conn.handle = func(words []string) (*routeros.Reply, error) {
		switch words[0] {
		case "/system/identity/print":
			return replyWith(map[string]string{"name": "core-router"}), nil
		case "/system/resource/print":
			return replyWith(map[string]string{"version": "7.14", "uptime": "2w3d"}), nil
		}
		return nil, errors.New("unexpected command")
	}
	m.dial = func(addr string, d, r time.Duration) (Conn, error) { return conn, nil }

	report := m.RunDiagnostics(testEndpoint())
	assert.True(t, report.Reachable)
	assert.True(t, report.LoginOK)
	assert.Equal(t, "core-router", report.Identity)
	assert.Equal(t, "7.14", report.Version)
	assert.Equal(t, "2w3d", report.Uptime)
	assert.True(t, conn.closed)
}

func TestRunDiagnosticsLoginFailureStillReportsReachability(t *testing.T) {
	m := testManager()
	m.dial = func(addr string, d, r time.Duration) (Conn, error) {
		return &fakeConn{loginErr: &routeros.TrapError{Message: "invalid user name or password"}}, nil
	}

	report := m.RunDiagnostics(testEndpoint())
	assert.True(t, report.Reachable)
	assert.False(t, report.LoginOK)
	assert.NotEmpty(t, report.LoginError)
}
