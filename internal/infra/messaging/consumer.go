package messaging

import (
	"context"
	"errors"
	"time"

	"ccmart/internal/usecase"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxHandleAttempts = 3
	retryBackoff      = 200 * time.Millisecond
)

// nilを返したらコミットしてよい
type OrderEventHandler func(ctx context.Context, e usecase.OrderEvent) error

type fetchCommitter interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ワーカープール。同じパーティションは同じワーカーに渡すので順序とコミット順が崩れない
type OrderEventConsumer struct {
	reader  fetchCommitter
	workers int
	log     *zap.Logger
}

func NewOrderEventConsumer(brokers []string, groupID, topic string, workers int, log *zap.Logger) *OrderEventConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          1,
		MaxBytes:          10e6,
		CommitInterval:    0, // 手動コミット
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	return newOrderEventConsumer(r, workers, log)
}

func newOrderEventConsumer(r fetchCommitter, workers int, log *zap.Logger) *OrderEventConsumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderEventConsumer{reader: r, workers: workers, log: log}
}

// ctxがキャンセルされるまで読む。読み取り側のエラーで全ワーカーを止める
func (c *OrderEventConsumer) Run(ctx context.Context, h OrderEventHandler) error {
	defer c.reader.Close()

	g, gctx := errgroup.WithContext(ctx)
	jobs := make([]chan kafka.Message, c.workers)
	for i := range jobs {
		in := make(chan kafka.Message, 64)
		jobs[i] = in
		g.Go(func() error {
			for m := range in {
				c.handle(gctx, h, m)
			}
			return nil
		})
	}

	g.Go(func() error {
		//閉じるとワーカーは受け取り済みの分を処理して終わる
		defer func() {
			for _, ch := range jobs {
				close(ch)
			}
		}()
		for {
			m, err := c.reader.FetchMessage(gctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case jobs[m.Partition%c.workers] <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	c.log.Info("order event consumer started", zap.Int("workers", c.workers))
	return g.Wait()
}

// 失敗は数回やり直し、それでもだめならログを残して先に進む
func (c *OrderEventConsumer) handle(ctx context.Context, h OrderEventHandler, m kafka.Message) {
	env, e, err := DecodeOrderEvent(m.Value)
	if err != nil {
		c.log.Error("drop undecodable message",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		c.commit(ctx, m)
		return
	}

	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		err = h(ctx, e)
		if err == nil {
			break
		}
		c.log.Warn("handle order event failed",
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == maxHandleAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		c.log.Error("give up order event", zap.String("event_id", env.EventID), zap.Error(err))
	}
	c.commit(ctx, m)
}

func (c *OrderEventConsumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Error("commit message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}
