// Package nats carries indexing traffic between the api and the worker.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/resilience"
)

const (
	// subjectScanRequests is consumed by one worker of the group.
	subjectScanRequests = "corpus.scan"
	// subjectCorpusUpdated is broadcast to every api instance so each
	// can rebuild its lexical index.
	subjectCorpusUpdated = "corpus.updated"

	workerQueueGroup = "workers"
)

type scanRequest struct {
	Full bool `json:"full"`
}

type Queue struct {
	conn     *nats.Conn
	executor *resilience.Executor
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url string, options Options) (*Queue, error) {
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
		nats.Name("course-rag-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishScanRequest(ctx context.Context, full bool) error {
	payload, err := json.Marshal(scanRequest{Full: full})
	if err != nil {
		return fmt.Errorf("marshal scan request: %w", err)
	}
	return q.publish(ctx, subjectScanRequests, payload)
}

func (q *Queue) PublishCorpusUpdated(ctx context.Context, report domain.ScanReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal scan report: %w", err)
	}
	return q.publish(ctx, subjectCorpusUpdated, payload)
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
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
		return wrapTemporaryIfNeeded("nats publish "+subject, err)
	}
	return nil
}

// SubscribeScanRequests joins the worker queue group and blocks until ctx
// is done, then drains in-flight deliveries.
func (q *Queue) SubscribeScanRequests(ctx context.Context, handler func(ctx context.Context, full bool) error) error {
	sub, err := q.conn.QueueSubscribe(subjectScanRequests, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var req scanRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Warn("scan_request_malformed", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req.Full); err != nil {
			slog.Error("scan_request_failed", "full", req.Full, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subjectScanRequests, err)
	}
	return q.waitAndDrain(ctx, sub)
}

// SubscribeCorpusUpdated delivers every corpus change notification to
// this instance; it is not queue-grouped on purpose.
func (q *Queue) SubscribeCorpusUpdated(ctx context.Context, handler func(ctx context.Context) error) error {
	sub, err := q.conn.Subscribe(subjectCorpusUpdated, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx); err != nil {
			slog.Error("corpus_updated_handler_failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subjectCorpusUpdated, err)
	}
	return q.waitAndDrain(ctx, sub)
}

func (q *Queue) waitAndDrain(ctx context.Context, sub *nats.Subscription) error {
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
