package executor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// maxPrealloc caps how much a declared Content-Length may reserve up front.
const maxPrealloc = 32 << 20

var errStalled = errors.New("no data received within timeout")

type chunk struct {
	b   []byte
	err error
}

// Assemble reads r to the end into one buffer. The read is abandoned once no
// byte has arrived for opts.Timeout; a slow but steady stream is never cut
// off. Framing faults after partial data are accepted as a truncated result
// when opts.TolerateTruncation is set. declared is the advertised length or
// -1 when unknown.
func Assemble(r io.Reader, declared int64, opts Options) ([]byte, State, error) {
	opts = opts.withDefaults()

	chunks := make(chan chunk)
	done := make(chan struct{})
	defer close(done)
	go pump(r, opts, chunks, done)

	var out bytes.Buffer
	if declared > 0 {
		out.Grow(int(min(declared, maxPrealloc)))
	}

	ticker := time.NewTicker(opts.IdleInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case c := <-chunks:
			if len(c.b) > 0 {
				out.Write(c.b)
				last = time.Now()
			}
			if c.err == nil {
				continue
			}
			return finish(out.Bytes(), declared, c.err, opts)

		case <-ticker.C:
			if time.Since(last) <= opts.Timeout {
				continue
			}
			// unblocks a Read stuck in the network stack
			if cl, ok := r.(io.Closer); ok {
				_ = cl.Close()
			}
			return nil, StateTimedOut, &FetchError{
				Kind: KindTimeout,
				Err:  fmt.Errorf("%w after %d bytes", errStalled, out.Len()),
			}
		}
	}
}

func pump(r io.Reader, opts Options, out chan<- chunk, done <-chan struct{}) {
	for {
		buf := make([]byte, opts.ChunkSize)
		n, err := r.Read(buf)
		if n == 0 && err == nil {
			select {
			case <-time.After(opts.IdleInterval):
				continue
			case <-done:
				return
			}
		}
		select {
		case out <- chunk{b: buf[:n], err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func finish(body []byte, declared int64, err error, opts Options) ([]byte, State, error) {
	short := declared >= 0 && int64(len(body)) < declared
	switch {
	case errors.Is(err, io.EOF) && !short:
		return body, StateComplete, nil
	case errors.Is(err, io.EOF), isFramingFault(err):
		if opts.TolerateTruncation {
			return body, StateTruncated, nil
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, StateTransportError, &FetchError{Kind: KindTruncated, Err: err}
	default:
		return nil, StateTransportError, &FetchError{Kind: KindTransport, Err: err}
	}
}

// isFramingFault reports errors that mean the body ended early or its
// framing broke, as opposed to a failed connection.
func isFramingFault(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, bufio.ErrBufferFull) {
		return true
	}
	// net/http does not export its chunked reader errors
	msg := err.Error()
	return strings.Contains(msg, "malformed chunked encoding") ||
		strings.Contains(msg, "chunked line too long") ||
		strings.Contains(msg, "invalid byte in chunk length")
}
