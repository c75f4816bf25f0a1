package gameserver

import (
	"context"

	"go.uber.org/zap"
)

// Snapshot is a point-in-time view of server occupancy.
type Snapshot struct {
	Sessions        int
	WaitingRooms    int
	QueuedSessions  int
	BroadcastGroups int
}

// Snapshot returns current session and registry counts.
func (r *Router) Snapshot() Snapshot {
	st := r.registry.Stats()
	return Snapshot{
		Sessions:        r.sessions.Count(),
		WaitingRooms:    st.WaitingRooms,
		QueuedSessions:  st.QueuedSessions,
		BroadcastGroups: st.BroadcastGroups,
	}
}

// ReportStats logs the current Snapshot. Its signature fits
// server.PeriodicService ticks.
func (r *Router) ReportStats(_ context.Context) {
	snap := r.Snapshot()
	r.logger.Info("lobby stats",
		zap.String("mode", r.mode),
		zap.Int("sessions", snap.Sessions),
		zap.Int("waiting_rooms", snap.WaitingRooms),
		zap.Int("queued_sessions", snap.QueuedSessions),
		zap.Int("active_groups", snap.BroadcastGroups),
	)
}
