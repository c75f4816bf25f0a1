// Package redis mirrors the lobby's waiting rooms into a Redis hash so
// operators and other nodes can read them. The in-memory registry stays
// authoritative; the mirror is best effort.
package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/config"
	"github.com/cory-johannsen/omok/internal/game/lobby"
)

// opTimeout bounds a single mirror write.
const opTimeout = 2 * time.Second

type op struct {
	open bool
	name string
	mode string
}

// Directory implements lobby.Observer by queueing changes for a background
// writer. Observer calls never block; when the queue is full the change is
// dropped and counted.
type Directory struct {
	client  *goredis.Client
	key     string
	ops     chan op
	logger  *zap.Logger
	dropped atomic.Int64
}

// NewClient creates a go-redis client from cfg.
func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewDirectory creates a Directory writing to "<prefix>:rooms".
//
// Precondition: client and logger must be non-nil; queueSize must be positive.
func NewDirectory(client *goredis.Client, prefix string, queueSize int, logger *zap.Logger) *Directory {
	return &Directory{
		client: client,
		key:    prefix + ":rooms",
		ops:    make(chan op, queueSize),
		logger: logger,
	}
}

// Key returns the Redis hash key holding the mirror.
func (d *Directory) Key() string {
	return d.key
}

// RoomOpened implements lobby.Observer.
func (d *Directory) RoomOpened(room lobby.Summary) {
	d.enqueue(op{open: true, name: room.Name, mode: room.Mode})
}

// RoomClosed implements lobby.Observer.
func (d *Directory) RoomClosed(name string) {
	d.enqueue(op{name: name})
}

func (d *Directory) enqueue(o op) {
	select {
	case d.ops <- o:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("room directory queue full; dropping update",
			zap.String("room", o.name),
			zap.Bool("open", o.open),
			zap.Int64("dropped_total", n),
		)
	}
}

// Dropped returns how many updates were discarded because the queue was full.
func (d *Directory) Dropped() int64 {
	return d.dropped.Load()
}

// Run applies queued updates until ctx is cancelled, then flushes whatever
// is still queued.
//
// Postcondition: Returns nil after ctx is cancelled.
func (d *Directory) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return nil
		case o := <-d.ops:
			d.apply(o)
		}
	}
}

func (d *Directory) flush() {
	for {
		select {
		case o := <-d.ops:
			d.apply(o)
		default:
			return
		}
	}
}

// apply writes one update. It is not tied to Run's context so that updates
// dequeued during shutdown still land.
func (d *Directory) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	if o.open {
		err = d.client.HSet(ctx, d.key, o.name, o.mode).Err()
	} else {
		err = d.client.HDel(ctx, d.key, o.name).Err()
	}
	if err != nil {
		d.logger.Warn("room directory write failed",
			zap.String("room", o.name),
			zap.Bool("open", o.open),
			zap.Error(err),
		)
	}
}

// Rooms reads the mirror as room name to mode.
func (d *Directory) Rooms(ctx context.Context) (map[string]string, error) {
	rooms, err := d.client.HGetAll(ctx, d.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading room directory: %w", err)
	}
	return rooms, nil
}

// Reset clears the mirror. Called at startup, before any room exists.
func (d *Directory) Reset(ctx context.Context) error {
	if err := d.client.Del(ctx, d.key).Err(); err != nil {
		return fmt.Errorf("resetting room directory: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (d *Directory) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
