package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// MaxMessageSize bounds one line. Cache blobs pushed by the launcher can
// be several megabytes.
const MaxMessageSize = 64 << 20

// HandlerFunc handles one method. The result is ignored for notifications.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Peer reads messages from r and writes responses and notifications to w.
type Peer struct {
	r        io.Reader
	w        io.Writer
	logger   *log.Logger
	handlers map[string]HandlerFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewPeer creates a Peer. Register handlers before calling Serve.
func NewPeer(r io.Reader, w io.Writer, logger *log.Logger) *Peer {
	if logger == nil {
		logger = log.Default()
	}
	return &Peer{r: r, w: w, logger: logger, handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for method.
func (p *Peer) Handle(method string, h HandlerFunc) {
	p.handlers[method] = h
}

// Serve processes messages until r is exhausted or ctx is done, then waits
// for running handlers. EOF is a clean shutdown and returns nil.
func (p *Peer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(p.r)
		scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case err = <-readErr:
			if err != nil {
				err = errors.Wrap(errors.ErrCodeInternal, err, "read message")
			}
			break loop
		case line := <-lines:
			p.dispatch(ctx, line)
		}
	}
	p.wg.Wait()
	return err
}

func (p *Peer) dispatch(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}
	p.logger.Debug("received", "raw", string(line))

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		p.writeError(json.RawMessage("null"), &Error{Code: ParseError, Message: "parse error", Data: err.Error()})
		return
	}
	if msg.Method == "" {
		if !msg.IsNotification() {
			p.logger.Debug("ignoring message without method", "id", string(msg.ID))
		}
		return
	}
	h, ok := p.handlers[msg.Method]
	if !ok {
		if !msg.IsNotification() {
			p.writeError(msg.ID, &Error{Code: MethodNotFound, Message: "method not found", Data: msg.Method})
		} else {
			p.logger.Debug("unhandled notification", "method", msg.Method)
		}
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		result, err := p.call(ctx, h, msg.Params)
		if msg.IsNotification() {
			if err != nil {
				p.logger.Error("notification handler failed", "method", msg.Method, "err", err)
			}
			return
		}
		if err != nil {
			p.logger.Debug("request failed", "method", msg.Method, "err", err)
			p.writeError(msg.ID, ErrorFrom(err))
			return
		}
		p.write(resultResponse{JSONRPC: Version, ID: msg.ID, Result: result})
	}()
}

func (p *Peer) call(ctx context.Context, h HandlerFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, "handler panic: %v", r)
		}
	}()
	return h(ctx, params)
}

// Notify sends a notification to the launcher.
func (p *Peer) Notify(method string, params any) error {
	return p.write(notification{JSONRPC: Version, Method: method, Params: params})
}

func (p *Peer) writeError(id json.RawMessage, e *Error) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	p.write(errorResponse{JSONRPC: Version, ID: id, Error: e})
}

func (p *Peer) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("encoding message failed", "err", err)
		return errors.Wrap(errors.ErrCodeInternal, err, "encode message")
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.logger.Debug("sending", "raw", string(data))
	if _, err := fmt.Fprintf(p.w, "%s\n", data); err != nil {
		p.logger.Error("writing message failed", "err", err)
		return errors.Wrap(errors.ErrCodeInternal, err, "write message")
	}
	return nil
}
