package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// conn frames JSON-RPC messages over a byte stream using LSP's
// Content-Length headers. Writes are serialized; reads happen from the
// single protocol loop.
type conn struct {
	in      *bufio.Reader
	out     *bufio.Writer
	writeMu sync.Mutex
}

func newConn(in io.Reader, out io.Writer) *conn {
	return &conn{
		in:  bufio.NewReader(in),
		out: bufio.NewWriter(out),
	}
}

func (c *conn) read() ([]byte, error) {
	contentLength := -1
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = length
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(c.in, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *conn) write(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.out, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := c.out.Write(payload); err != nil {
		return err
	}
	return c.out.Flush()
}
