package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
)

// StdIO frames line-delimited JSON-RPC 2.0 messages over an io.Reader/io.Writer
// pair, normally os.Stdin/os.Stdout. Diagnostic output goes to the logger,
// which callers should point at standard error to keep stdout clean for the
// protocol. Send is unused: StdIO answers every request inline through the
// reply closure handed to the Handler, so it does not implement Broadcaster.
type StdIO struct {
	reader io.Reader
	writer io.Writer
	logger *slog.Logger

	writeMu sync.Mutex

	done       chan struct{}
	readClosed chan struct{}
}

// NewStdIO creates a StdIO transport bound to reader and writer.
func NewStdIO(reader io.Reader, writer io.Writer, opts ...StdIOOption) *StdIO {
	s := &StdIO{
		reader:     reader,
		writer:     writer,
		logger:     slog.Default(),
		done:       make(chan struct{}),
		readClosed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StdIOOption configures a StdIO transport.
type StdIOOption func(*StdIO)

// WithStdIOLogger sets the diagnostic logger for the StdIO transport.
func WithStdIOLogger(logger *slog.Logger) StdIOOption {
	return func(s *StdIO) {
		s.logger = logger.With(slog.String("transport", "stdio"))
	}
}

// Start implements Transport. It spawns the read loop and returns immediately;
// the loop runs until Stop is called or the reader reaches EOF.
func (s *StdIO) Start(_ context.Context, handler Handler) error {
	go s.readLoop(handler)
	return nil
}

// Stop implements Transport, waiting for the read loop to observe done.
func (s *StdIO) Stop(ctx context.Context) error {
	close(s.done)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.readClosed:
	}
	return nil
}

func (s *StdIO) readLoop(handler Handler) {
	defer close(s.readClosed)

	reader := bufio.NewReader(s.reader)
	for {
		type lineResult struct {
			line string
			err  error
		}
		lines := make(chan lineResult, 1)
		go func() {
			line, err := reader.ReadString('\n')
			lines <- lineResult{line: line, err: err}
		}()

		var lr lineResult
		select {
		case <-s.done:
			return
		case lr = <-lines:
		}

		if lr.err != nil {
			if !errors.Is(lr.err, io.EOF) {
				s.logger.Error("failed to read line", slog.String("err", lr.err.Error()))
			}
			return
		}

		if len(lr.line) == 0 {
			continue
		}

		req, parseErr := jsonrpc.ParseRequest([]byte(lr.line))
		if parseErr != nil {
			s.writeResponse(jsonrpc.ErrorResponse("", parseErr))
			continue
		}

		normalized := Request{
			Method: req.Method,
			Params: req.Params,
			ID:     req.ID,
		}

		go handler(context.Background(), normalized, func(_ context.Context, resp jsonrpc.Response) {
			s.writeResponse(resp)
		})
	}
}

func (s *StdIO) writeResponse(resp jsonrpc.Response) {
	bs, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", slog.String("err", err.Error()))
		return
	}
	bs = append(bs, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.Write(bs); err != nil {
		s.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}
