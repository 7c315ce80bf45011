package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/niels/nixie/pkg/source"
	"github.com/rs/zerolog"
)

// maxBodyDrain is the largest request body read and discarded before the
// connection is closed instead of reused
const maxBodyDrain = 64 << 10

// ErrFetch wraps any failure of the value source. The connection is aborted
// without a response when it occurs.
var ErrFetch = errors.New("value source failed")

// Handler answers HTTP/1.1 requests on a single connection with the current
// value of its source. Path and method are ignored unless GetOnly is set.
type Handler struct {
	source       source.ValueSource
	fetchTimeout time.Duration
	idleTimeout  time.Duration
	getOnly      bool
	logger       zerolog.Logger
}

// NewHandler creates a handler bound to src
func NewHandler(src source.ValueSource, opts Options, logger zerolog.Logger) *Handler {
	return &Handler{
		source:       src,
		fetchTimeout: opts.FetchTimeout,
		idleTimeout:  opts.IdleTimeout,
		getOnly:      opts.GetOnly,
		logger:       logger,
	}
}

// FormatBody renders value in decimal followed by exactly one newline.
// Clients on keep-alive connections rely on the trailing newline and an
// exact Content-Length to see the end of the response without waiting.
func FormatBody(value int64) []byte {
	body := strconv.AppendInt(nil, value, 10)
	return append(body, '\n')
}

// ServeConn serves requests on conn until the client closes it, asks for the
// connection to be closed, stays idle too long, or the source fails. A
// returned error means the connection must be aborted.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) error {
	reader := bufio.NewReader(conn)

	for {
		if h.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		}

		req, err := http.ReadRequest(reader)
		if err != nil {
			if isConnectionDone(err) {
				return nil
			}
			h.logger.Debug().Err(err).Msg("Malformed request")
			return writeResponse(conn, http.StatusBadRequest, nil)
		}

		// The body is read under the same deadline as the headers
		complete, err := drainBody(req)
		if err != nil {
			h.logger.Debug().Err(err).Msg("Incomplete request body")
			return nil
		}
		_ = conn.SetReadDeadline(time.Time{})

		if err := h.serveRequest(ctx, conn, req); err != nil {
			return err
		}
		if req.Close || !complete {
			return nil
		}
	}
}

// drainBody discards up to maxBodyDrain bytes of the request body. It reports
// false when more remains, in which case the connection cannot be reused.
func drainBody(req *http.Request) (bool, error) {
	defer req.Body.Close()

	n, err := io.CopyN(io.Discard, req.Body, maxBodyDrain+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n <= maxBodyDrain, nil
}

func (h *Handler) serveRequest(ctx context.Context, w io.Writer, req *http.Request) error {
	start := time.Now()

	if h.getOnly && req.Method != http.MethodGet && req.Method != http.MethodHead {
		return writeResponse(w, http.StatusMethodNotAllowed, nil)
	}

	value, err := h.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	body := FormatBody(value)
	if req.Method == http.MethodHead {
		err = writeHead(w, http.StatusOK, len(body))
	} else {
		err = writeResponse(w, http.StatusOK, body)
	}
	if err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}

	h.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int64("value", value).
		Dur("duration", time.Since(start)).
		Msg("Served request")
	return nil
}

func (h *Handler) fetch(ctx context.Context) (value int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if h.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.fetchTimeout)
		defer cancel()
	}
	return h.source.Fetch(ctx)
}

// writeResponse sends the status line, a Content-Length header and body in a single write
func writeResponse(w io.Writer, status int, body []byte) error {
	var buf bytes.Buffer
	writeHeader(&buf, status, len(body))
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeHead(w io.Writer, status int, contentLength int) error {
	var buf bytes.Buffer
	writeHeader(&buf, status, contentLength)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeHeader(buf *bytes.Buffer, status int, contentLength int) {
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(buf, "Content-Length: %d\r\n\r\n", contentLength)
}

func isConnectionDone(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
