// Package sse re-frames an upstream event-stream body into normalized
// message records.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

var dataLine = regexp.MustCompile(`^data:\s?(.*)`)

// Record is one normalized event written to callers.
type Record struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

// Reframer turns raw upstream bytes into fragments.  It is not safe for
// concurrent use; each stream owns one.
type Reframer struct {
	chain Chain
	buf   []byte
}

func NewReframer(chain Chain) *Reframer {
	if chain == nil {
		chain = DefaultChain
	}
	return &Reframer{chain: chain}
}

// Feed consumes chunk and returns the non-blank fragments of every line it
// completed.  Bytes after the last newline are held for the next call.
func (r *Reframer) Feed(chunk []byte) []string {
	r.buf = append(r.buf, chunk...)
	var out []string
	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(r.buf[:i]), "\r")
		r.buf = r.buf[i+1:]
		if f, ok := r.line(line); ok {
			out = append(out, f)
		}
	}
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return out
}

// Pending reports how many bytes of an unterminated line are buffered.
func (r *Reframer) Pending() int { return len(r.buf) }

func (r *Reframer) line(line string) (string, bool) {
	m := dataLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	f := r.chain.Extract(m[1])
	if strings.TrimSpace(f) == "" {
		return "", false
	}
	return f, true
}

// WriteRecord writes one `data: {"event":"message","text":...}` record
// followed by a blank line.  HTML characters are not escaped.
func WriteRecord(w io.Writer, fragment string) error {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Record{Event: "message", Text: fragment}); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// Pump copies src to dst as normalized records until src ends, ctx is done
// or a write fails.  flush is called after every chunk that produced
// records.  A partial line left at the end of src is discarded.  It returns
// the number of records written.
func Pump(ctx context.Context, dst io.Writer, flush func(), src io.Reader, chain Chain) (int, error) {
	r := NewReframer(chain)
	buf := make([]byte, 4096)
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			frags := r.Feed(buf[:n])
			for _, f := range frags {
				if werr := WriteRecord(dst, f); werr != nil {
					return written, werr
				}
				written++
			}
			if len(frags) > 0 && flush != nil {
				flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
