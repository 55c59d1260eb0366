package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// boltDBConsumer replays book change events into the bolt journal.
type boltDBConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	repo    BookStorage
	backoff time.Duration
}

func NewBoltDBConsumer(logger *zap.Logger, q Queuer, repo BookStorage) Consumer {
	return &boltDBConsumer{logger: logger, queue: q, repo: repo, backoff: time.Second}
}

// Consume pops events until the context is done. It only returns nil.
func (bc *boltDBConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		if ctx.Err() != nil {
			bc.logger.Info("consumer: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		qid, book, err := bc.queue.Pop(ctx, qids...)
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}

		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.String("qid", qid), zap.Error(err))
			select {
			case <-ctx.Done():
				continue
			case <-time.After(bc.backoff):
			}
			continue
		}

		bc.apply(ctx, qid, book)
	}
}

func (bc *boltDBConsumer) apply(ctx context.Context, qid string, book BookEntity) {
	var err error
	switch qid {
	case CreateQueue:
		if err = bc.repo.Add(ctx, book); err != nil {
			bc.logger.Error("consumer: failed to create", zap.String("book.uid", book.UID.String()), zap.Error(err))
		}
	case UpdateQueue:
		if err = bc.repo.Update(ctx, book); err != nil {
			bc.logger.Error("consumer: failed to update", zap.String("book.uid", book.UID.String()), zap.Error(err))
		}
	case DeleteQueue:
		err = bc.repo.Delete(ctx, book.UID)
		if err != nil && !errors.Is(err, ErrBookNotFound) {
			bc.logger.Error("consumer: failed to delete", zap.String("book.uid", book.UID.String()), zap.Error(err))
		}
	default:
		bc.logger.Warn("consumer: received book on unknown queue id", zap.String("qid", qid), zap.String("book.uid", book.UID.String()))
	}
}
