// Package natsrpc serves ontology generation over NATS request/reply.
//
// A request is {"domain": "...", ...} (service.Request). The reply body is
// the ontology JSON on success or {"errorKind", "message"} on failure; the
// request ID travels in the X-Request-ID header.
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/brunobiangulo/goontology"
	"github.com/brunobiangulo/goontology/service"
)

const (
	// DefaultSubject is the request subject.
	DefaultSubject = "ontology.generate"
	// DefaultQueue is the queue group shared by all responders, so each
	// request is answered once.
	DefaultQueue = "goontology"

	// HeaderRequestID carries the request ID on replies.
	HeaderRequestID = "X-Request-ID"
	// HeaderOutcome is "ok" or the error kind.
	HeaderOutcome = "X-Outcome"
)

// KindInvalidRequest labels requests that are not valid JSON.
const KindInvalidRequest goontology.ErrorKind = "InvalidRequest"

// Generator is the part of service.Service the responder needs.
type Generator interface {
	Generate(ctx context.Context, req service.Request) (*service.Outcome, error)
}

// Config configures a Responder.
type Config struct {
	Subject string
	Queue   string
	// Timeout bounds each request. Zero means no bound beyond the engine's.
	Timeout time.Duration
}

// Responder answers generation requests.
type Responder struct {
	gen Generator
	cfg Config
	sub *nats.Subscription
}

// NewResponder creates a responder; call Start to subscribe.
func NewResponder(gen Generator, cfg Config) *Responder {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	return &Responder{gen: gen, cfg: cfg}
}

// Start queue-subscribes on nc.
func (r *Responder) Start(nc *nats.Conn) error {
	sub, err := nc.QueueSubscribe(r.cfg.Subject, r.cfg.Queue, r.onMsg)
	if err != nil {
		return fmt.Errorf("natsrpc: subscribe %s: %w", r.cfg.Subject, err)
	}
	r.sub = sub
	slog.Info("natsrpc: listening", "subject", r.cfg.Subject, "queue", r.cfg.Queue)
	return nil
}

// Stop drains the subscription, letting in-flight requests finish.
func (r *Responder) Stop() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Drain()
}

func (r *Responder) onMsg(msg *nats.Msg) {
	ctx := context.Background()
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	reply := r.handle(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	out := nats.NewMsg(msg.Reply)
	out.Data = reply.Body
	out.Header.Set(HeaderRequestID, reply.RequestID)
	out.Header.Set(HeaderOutcome, reply.Outcome)
	if err := msg.RespondMsg(out); err != nil {
		slog.Warn("natsrpc: reply failed", "request_id", reply.RequestID, "error", err)
	}
}

// reply is a rendered response.
type reply struct {
	Body      []byte
	RequestID string
	Outcome   string
}

func (r *Responder) handle(ctx context.Context, data []byte) reply {
	var req service.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return failure("", &goontology.Error{Kind: KindInvalidRequest, Message: fmt.Sprintf("decoding request: %v", err)})
	}

	out, err := r.gen.Generate(ctx, req)
	if err != nil {
		return failure(req.RequestID, err)
	}

	body, err := json.Marshal(out.Ontology)
	if err != nil {
		return failure(out.RequestID, err)
	}
	return reply{Body: body, RequestID: out.RequestID, Outcome: "ok"}
}

func failure(requestID string, err error) reply {
	body := service.ErrorBody(err)
	data, merr := json.Marshal(body)
	if merr != nil {
		data = []byte(`{"errorKind":"ProcessFailure","message":"encoding failure"}`)
	}
	var ge *goontology.Error
	if !errors.As(err, &ge) {
		slog.Warn("natsrpc: request failed", "request_id", requestID, "error", err)
	}
	return reply{Body: data, RequestID: requestID, Outcome: string(body.Kind)}
}
