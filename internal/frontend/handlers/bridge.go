// Package handlers connects transport sessions to the matchmaking router and
// serves the account HTTP routes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/frontend/ws"
	"github.com/cory-johannsen/omok/internal/game/session"
)

// SessionRouter is the event routing surface GameBridge drives.
type SessionRouter interface {
	Connect(id string) (*session.Session, error)
	Dispatch(s *session.Session, raw []byte)
	Disconnect(s *session.Session)
}

// GameBridge implements ws.SessionHandler. Each connection gets a fresh
// session; inbound frames are dispatched in arrival order and the session
// outbox is drained by a dedicated writer.
type GameBridge struct {
	router SessionRouter
	logger *zap.Logger
	newID  func() string
}

// NewGameBridge creates a GameBridge.
//
// Precondition: router and logger must be non-nil.
func NewGameBridge(router SessionRouter, logger *zap.Logger) *GameBridge {
	return &GameBridge{
		router: router,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// HandleSession runs one connection to completion.
//
// Postcondition: The router's Disconnect has run exactly once for the session.
// Returns nil on a normal close or shutdown, otherwise the read or write error.
func (b *GameBridge) HandleSession(ctx context.Context, conn *ws.Conn) error {
	start := time.Now()
	s, err := b.router.Connect(b.newID())
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer b.router.Disconnect(s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket is the only way to unblock a pending read.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var (
		wg       sync.WaitGroup
		writeErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = b.writeLoop(ctx, conn, s)
		cancel()
	}()

	readErr := b.readLoop(ctx, conn, s)
	cancel()
	wg.Wait()

	b.logger.Debug("bridge closed",
		zap.String("session_id", s.ID),
		zap.String("remote_addr", conn.RemoteAddr()),
		zap.Duration("duration", time.Since(start)),
	)
	if readErr != nil {
		return readErr
	}
	return writeErr
}

// readLoop dispatches frames until the peer goes away or ctx is cancelled.
func (b *GameBridge) readLoop(ctx context.Context, conn *ws.Conn, s *session.Session) error {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || !ws.IsUnexpectedClose(err) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		b.router.Dispatch(s, msg)
	}
}

// writeLoop drains the outbox and keeps the connection alive with pings.
func (b *GameBridge) writeLoop(ctx context.Context, conn *ws.Conn, s *session.Session) error {
	var ping <-chan time.Time
	if interval := conn.PingInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-s.Outbox.Events():
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(data); err != nil {
				return b.writeFailed(ctx, s, err)
			}
		case <-ping:
			if err := conn.Ping(); err != nil {
				return b.writeFailed(ctx, s, err)
			}
		}
	}
}

func (b *GameBridge) writeFailed(ctx context.Context, s *session.Session, err error) error {
	if ctx.Err() != nil || errors.Is(err, ws.ErrClosed) {
		return nil
	}
	b.logger.Debug("write failed", zap.String("session_id", s.ID), zap.Error(err))
	return fmt.Errorf("writing frame: %w", err)
}
