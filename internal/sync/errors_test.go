package sync

import (
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"netbill.id/panel/internal/routeros"
)

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"trap no such item", &routeros.TrapError{Message: "no such item"}, KindNotFound},
		{"trap not found", &routeros.TrapError{Message: "input does not match any value: not found"}, KindNotFound},
		{"trap bad credentials", &routeros.TrapError{Message: "invalid user name or password (6)"}, KindAuth},
		{"trap anything else", &routeros.TrapError{Message: "failure: already have such address"}, KindProtocol},
		{"fatal", &routeros.FatalError{Message: "session closed"}, KindProtocol},
		{"timeout", timeoutError{}, KindNetwork},
		{"refused", syscall.ECONNREFUSED, KindNetwork},
		{"generic transport", errors.New("connection reset by peer"), KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(Classify("op", tt.err)))
		})
	}
}

func TestClassifyPreservesExistingKind(t *testing.T) {
	orig := newError(KindValidation, "push", "bad input", nil)
	got := Classify("outer", orig)
	assert.Equal(t, KindValidation, got.Kind)
	assert.Equal(t, "push", got.Op)
}

func TestIsStreamError(t *testing.T) {
	assert.True(t, isStreamError(io.EOF))
	assert.True(t, isStreamError(io.ErrUnexpectedEOF))
	assert.True(t, isStreamError(timeoutError{}))
	assert.True(t, isStreamError(syscall.ECONNRESET))
	assert.True(t, isStreamError(errors.New("tls: first record does not look like a TLS handshake; broken stream")))
	assert.False(t, isStreamError(nil))
	assert.False(t, isStreamError(&routeros.TrapError{Message: "invalid user name or password"}))
}

func TestAdvicePerKind(t *testing.T) {
	assert.Contains(t, Advice(newError(KindAuth, "login", "", nil)), "username and password")
	assert.Contains(t, Advice(newError(KindNotFound, "remove", "", nil)), "already absent")
	assert.Contains(t, Advice(Classify("dial", syscall.ECONNREFUSED)), "/ip service")
	assert.Contains(t, Advice(Classify("run", timeoutError{})), "retry later")
	assert.Empty(t, Advice(newError(KindValidation, "push", "", nil)))
	assert.Empty(t, Advice(errors.New("plain")))
}
