// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package link

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// MaxLineBytes bounds a single wire message. The original protocol's line
// reader was unbounded by design (acknowledged TODO); this cap resolves
// that open question in favor of a hard limit rather than an unbounded
// buffer an adversarial peer could grow without limit.
const MaxLineBytes = 1 << 20 // 1 MiB

// Conn wraps a raw stream connection with the line-delimited JSON framing:
// one document per line, UTF-8, no embedded '\n'.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
}

// NewConn wraps nc for line-delimited JSON I/O.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, r: bufio.NewReaderSize(nc, 4096)}
}

// SetDeadline applies a read+write deadline, as the per-operation timeout
// bounding both directions of one exchange.
func (c *Conn) SetDeadline(t time.Time) error { return c.nc.SetDeadline(t) }

// ReadMessage reads one line and unmarshals it into v.
func (c *Conn) ReadMessage(v any) error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	return json.Unmarshal(line, v)
}

func (c *Conn) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			buf = append(buf, chunk...)
			if len(buf) > MaxLineBytes {
				return nil, fmt.Errorf("link: message exceeds %d bytes", MaxLineBytes)
			}
			continue
		}
		if err != nil {
			if err == io.EOF && len(chunk) == 0 {
				return nil, io.EOF
			}
			return nil, err
		}
		buf = append(buf, chunk[:len(chunk)-1]...) // drop trailing '\n'
		if len(buf) > MaxLineBytes {
			return nil, fmt.Errorf("link: message exceeds %d bytes", MaxLineBytes)
		}
		return buf, nil
	}
}

// WriteMessage marshals v and writes it as one line.
func (c *Conn) WriteMessage(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("link: marshal: %w", err)
	}
	if bytes.IndexByte(b, '\n') >= 0 {
		return fmt.Errorf("link: message contains an embedded newline")
	}
	b = append(b, '\n')
	if _, err := c.nc.Write(b); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }
