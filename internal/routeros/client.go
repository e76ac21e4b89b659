package routeros

import (
	"bufio"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"
)

// Client is one authenticated API session. It is not safe for concurrent
// use; the panel opens one per logical operation and closes it after.
type Client struct {
	conn        net.Conn
	r           *bufio.Reader
	readTimeout time.Duration
}

func Dial(addr string, dialTimeout, readTimeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, readTimeout), nil
}

func DialTLS(addr string, dialTimeout, readTimeout time.Duration) (*Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	// Routers ship self-signed API certificates.
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return nil, err
	}
	return NewClient(conn, readTimeout), nil
}

// NewClient wraps an established connection. Exposed so tests can drive a
// session over net.Pipe.
func NewClient(conn net.Conn, readTimeout time.Duration) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn), readTimeout: readTimeout}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Login authenticates the session. Firmware from 6.43 on accepts the
// password in the first sentence; older firmware answers with =ret=
// carrying an MD5 challenge that must be solved in a second round.
func (c *Client) Login(username, password string) error {
	reply, err := c.Run("/login", "=name="+username, "=password="+password)
	if err != nil {
		return err
	}

	ret := ""
	if reply.Done != nil {
		ret = reply.Done.Map["ret"]
	}
	if ret == "" {
		return nil
	}

	challenge, err := hex.DecodeString(ret)
	if err != nil {
		return fmt.Errorf("routeros: malformed login challenge: %w", err)
	}

	sum := md5.New()
	sum.Write([]byte{0})
	sum.Write([]byte(password))
	sum.Write(challenge)

	_, err = c.Run("/login", "=name="+username, "=response=00"+hex.EncodeToString(sum.Sum(nil)))
	return err
}

// Run sends one command sentence and reads until !done. A !trap is
// returned as *TrapError after the terminating !done arrives, so the
// session stays usable; !fatal closes the connection.
func (c *Client) Run(words ...string) (*Reply, error) {
	if c.readTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.readTimeout))
	}
	if err := writeSentence(c.conn, words); err != nil {
		return nil, err
	}

	reply := &Reply{}
	var trap *TrapError
	for {
		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		sen, err := readSentence(c.r)
		if err != nil {
			return nil, err
		}

		switch sen.Word {
		case "!re":
			reply.Re = append(reply.Re, sen)
		case "!done":
			reply.Done = sen
			if trap != nil {
				return reply, trap
			}
			return reply, nil
		case "!trap":
			trap = &TrapError{Message: sen.Map["message"], Category: sen.Map["category"]}
		case "!fatal":
			c.conn.Close()
			return nil, &FatalError{Message: strings.Join(sen.Raw[1:], " ")}
		default:
			return nil, fmt.Errorf("routeros: unexpected reply word %q", sen.Word)
		}
	}
}
