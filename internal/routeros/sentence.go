// Package routeros speaks the RouterOS binary API: length-prefixed words
// grouped into sentences, exchanged over a plain or TLS TCP connection.
package routeros

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Sentence is one reply sentence. Word holds the reply type (!re, !done,
// !trap, !fatal); attribute words (=key=value) land in Map.
type Sentence struct {
	Word string
	Map  map[string]string
	Raw  []string
}

// Reply is everything the router sent for one command: the data sentences
// and the terminating !done (which may carry =ret=, e.g. the id of an
// added object or a login challenge).
type Reply struct {
	Re   []*Sentence
	Done *Sentence
}

// TrapError is a command-level rejection reported by the router.
type TrapError struct {
	Message  string
	Category string
}

func (e *TrapError) Error() string {
	if e.Message == "" {
		return "routeros: trap"
	}
	return "routeros: " + e.Message
}

// FatalError means the router is tearing down the session.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return "routeros: fatal: " + e.Message
}

func writeSentence(w io.Writer, words []string) error {
	var buf bytes.Buffer
	for _, word := range words {
		writeLength(&buf, len(word))
		buf.WriteString(word)
	}
	buf.WriteByte(0)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeLength(buf *bytes.Buffer, n int) {
	switch {
	case n < 0x80:
		buf.WriteByte(byte(n))
	case n < 0x4000:
		buf.WriteByte(byte(n>>8) | 0x80)
		buf.WriteByte(byte(n))
	case n < 0x200000:
		buf.WriteByte(byte(n>>16) | 0xC0)
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	case n < 0x10000000:
		buf.WriteByte(byte(n>>24) | 0xE0)
		buf.WriteByte(byte(n >> 16))
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(0xF0)
		buf.WriteByte(byte(n >> 24))
		buf.WriteByte(byte(n >> 16))
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	}
}

func readLength(r *bufio.Reader) (int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	var n int
	var extra int
	switch {
	case b < 0x80:
		return int(b), nil
	case b&0xC0 == 0x80:
		n = int(b & 0x3F)
		extra = 1
	case b&0xE0 == 0xC0:
		n = int(b & 0x1F)
		extra = 2
	case b&0xF0 == 0xE0:
		n = int(b & 0x0F)
		extra = 3
	case b == 0xF0:
		n = 0
		extra = 4
	default:
		return 0, fmt.Errorf("routeros: reserved length control byte 0x%02X", b)
	}

	for i := 0; i < extra; i++ {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		n = n<<8 | int(b)
	}
	return n, nil
}

func readWord(r *bufio.Reader) (string, error) {
	n, err := readLength(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readSentence(r *bufio.Reader) (*Sentence, error) {
	sen := &Sentence{Map: make(map[string]string)}
	for {
		word, err := readWord(r)
		if err != nil {
			return nil, err
		}
		if word == "" {
			// Zero-length word ends the sentence; skip stray empties
			// before any content.
			if len(sen.Raw) == 0 {
				continue
			}
			return sen, nil
		}

		sen.Raw = append(sen.Raw, word)
		if sen.Word == "" && strings.HasPrefix(word, "!") {
			sen.Word = word
			continue
		}
		if strings.HasPrefix(word, "=") {
			if i := strings.Index(word[1:], "="); i >= 0 {
				sen.Map[word[1:i+1]] = word[i+2:]
			}
		}
	}
}
