package routeros

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthEncodingRoundTrip(t *testing.T) {
	lengths := []int{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000, 0xFFFFFFF, 0x10000000}

	for _, n := range lengths {
		var buf bytes.Buffer
		writeLength(&buf, n)
		got, err := readLength(bufio.NewReader(&buf))
		require.NoError(t, err, "length %#x", n)
		assert.Equal(t, n, got, "length %#x", n)
	}
}

func TestReadLengthRejectsReservedControlByte(t *testing.T) {
	_, err := readLength(bufio.NewReader(bytes.NewReader([]byte{0xF8})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestSentenceRoundTrip(t *testing.T) {
	words := []string{"!re", "=name=alice", "=profile=10M", "=comment=paid until march"}

	var buf bytes.Buffer
	require.NoError(t, writeSentence(&buf, words))

	sen, err := readSentence(bufio.NewReader(&buf))
	require.NoError(t, err)

	assert.Equal(t, "!re", sen.Word)
	assert.Equal(t, words, sen.Raw)
	assert.Equal(t, "alice", sen.Map["name"])
	assert.Equal(t, "10M", sen.Map["profile"])
	assert.Equal(t, "paid until march", sen.Map["comment"])
}

// serve runs a scripted router on the far end of a pipe: for each client
// sentence, the next script entry is written back.
func serve(t *testing.T, conn net.Conn, script func(request []string) [][]string) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			sen, err := readSentence(r)
			if err != nil {
				return
			}
			for _, reply := range script(sen.Raw) {
				if err := writeSentence(conn, reply); err != nil {
					return
				}
			}
		}
	}()
}

func TestRunCollectsRepliesUntilDone(t *testing.T) {
	server, clientConn := net.Pipe()
	defer server.Close()

	serve(t, server, func(request []string) [][]string {
		require.Equal(t, []string{"/ppp/secret/print"}, request)
		return [][]string{
			{"!re", "=.id=*1", "=name=alice"},
			{"!re", "=.id=*2", "=name=bob"},
			{"!done"},
		}
	})

	c := NewClient(clientConn, time.Second)
	defer c.Close()

	reply, err := c.Run("/ppp/secret/print")
	require.NoError(t, err)
	require.Len(t, reply.Re, 2)
	assert.Equal(t, "alice", reply.Re[0].Map["name"])
	assert.Equal(t, "bob", reply.Re[1].Map["name"])
	require.NotNil(t, reply.Done)
}

func TestRunReturnsTrapAfterDone(t *testing.T) {
	server, clientConn := net.Pipe()
	defer server.Close()

	serve(t, server, func(request []string) [][]string {
		return [][]string{
			{"!trap", "=message=no such item", "=category=4"},
			{"!done"},
		}
	})

	c := NewClient(clientConn, time.Second)
	defer c.Close()

	reply, err := c.Run("/ppp/secret/remove", "=.id=*99")
	require.Error(t, err)

	var trap *TrapError
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, "no such item", trap.Message)
	// The terminating !done was still consumed; the session stays usable.
	require.NotNil(t, reply.Done)
}

func TestRunFatalClosesSession(t *testing.T) {
	server, clientConn := net.Pipe()
	defer server.Close()

	serve(t, server, func(request []string) [][]string {
		return [][]string{{"!fatal", "session terminated"}}
	})

	c := NewClient(clientConn, time.Second)

	_, err := c.Run("/system/reboot")
	require.Error(t, err)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, fatal.Message, "session terminated")
}

func TestLoginPlain(t *testing.T) {
	server, clientConn := net.Pipe()
	defer server.Close()

	var requests [][]string
	serve(t, server, func(request []string) [][]string {
		requests = append(requests, request)
		return [][]string{{"!done"}}
	})

	c := NewClient(clientConn, time.Second)
	defer c.Close()

	require.NoError(t, c.Login("api", "s3cret"))
	require.Len(t, requests, 1)
	assert.Equal(t, []string{"/login", "=name=api", "=password=s3cret"}, requests[0])
}

func TestLoginLegacyChallenge(t *testing.T) {
	server, clientConn := net.Pipe()
	defer server.Close()

	challenge := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c}

	var requests [][]string
	serve(t, server, func(request []string) [][]string {
		requests = append(requests, request)
		if len(requests) == 1 {
			return [][]string{{"!done", "=ret=" + hex.EncodeToString(challenge)}}
		}
		return [][]string{{"!done"}}
	})

	c := NewClient(clientConn, time.Second)
	defer c.Close()

	require.NoError(t, c.Login("api", "s3cret"))
	require.Len(t, requests, 2)

	sum := md5.New()
	sum.Write([]byte{0})
	sum.Write([]byte("s3cret"))
	sum.Write(challenge)
	expected := "=response=00" + hex.EncodeToString(sum.Sum(nil))

	found := false
	for _, w := range requests[1] {
		if w == expected {
			found = true
		}
	}
	assert.True(t, found, "second login sentence must carry the solved challenge")
}

func TestLoginRejectsMalformedChallenge(t *testing.T) {
	server, clientConn := net.Pipe()
	defer server.Close()

	serve(t, server, func(request []string) [][]string {
		return [][]string{{"!done", "=ret=not-hex"}}
	})

	c := NewClient(clientConn, time.Second)
	defer c.Close()

	err := c.Login("api", "pw")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "challenge"))
}
