package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/infrastructure/resilience"
)

// Queue bridges the API and the worker over NATS: queued batches flow one
// way, per-file pipeline events flow back for the SSE stream. File events
// are published on a per-session subject so subscribers only see their
// own session.
type Queue struct {
	conn         *nats.Conn
	batchSubject string
	eventSubject string
	executor     *resilience.Executor
}

func New(url, batchSubject, eventSubject string) (*Queue, error) {
	return NewWithOptions(url, batchSubject, eventSubject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, batchSubject, eventSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("clindoc"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		batchSubject: batchSubject,
		eventSubject: eventSubject,
		executor:     options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishBatchQueued(ctx context.Context, sessionID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.batchSubject, []byte(sessionID)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeBatchQueued joins the worker queue group and blocks until ctx
// is done. Every worker instance competes for batches; a batch is handled
// by exactly one of them.
func (q *Queue) SubscribeBatchQueued(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.batchSubject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			log.Printf("worker handler error for session=%s: %v", string(msg.Data), err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// PublishAbortRequested broadcasts an abort for one session. Unlike
// queued batches this is not queue-grouped: every worker hears it, and
// the one running the session cancels.
func (q *Queue) PublishAbortRequested(ctx context.Context, sessionID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.batchSubject+".abort", []byte(sessionID)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish_abort", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) SubscribeAbortRequested(_ context.Context, handler func(sessionID string)) (func(), error) {
	sub, err := q.conn.Subscribe(q.batchSubject+".abort", func(msg *nats.Msg) {
		handler(string(msg.Data))
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe abort: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats flush: %w", err)
	}
	return func() {
		if err := sub.Drain(); err != nil {
			log.Printf("nats drain abort subscription: %v", err)
		}
	}, nil
}

func (q *Queue) PublishFileEvent(ctx context.Context, event domain.FileEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal file event: %w", err)
	}
	subject := q.sessionEventSubject(event.SessionID)

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish_event", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeFileEvents delivers one session's pipeline events until the
// returned unsubscribe function is called. Undecodable payloads are
// dropped with a log line, not surfaced to the handler.
func (q *Queue) SubscribeFileEvents(_ context.Context, sessionID string, handler func(domain.FileEvent)) (func(), error) {
	sub, err := q.conn.Subscribe(q.sessionEventSubject(sessionID), func(msg *nats.Msg) {
		var event domain.FileEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("drop undecodable file event for session=%s: %v", sessionID, err)
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe events: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats flush: %w", err)
	}

	return func() {
		if err := sub.Drain(); err != nil {
			log.Printf("nats drain event subscription: %v", err)
		}
	}, nil
}

func (q *Queue) sessionEventSubject(sessionID string) string {
	return q.eventSubject + "." + sessionID
}
