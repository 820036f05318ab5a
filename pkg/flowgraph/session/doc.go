// Package session serializes turns per session.
//
// A Manager hands out one in-process mutex per session ID and, when a
// DistributedLocker is configured, also holds a cross-process lock for the
// duration of the turn. Manager satisfies flowgraph.Locker:
//
//	mgr := session.NewManager(store, session.WithLocker(session.NewRedisLocker(client, "scoutgraph:")))
//	res, err := compiled.Invoke(ctx, id, input,
//	    flowgraph.WithCheckpointing(store),
//	    flowgraph.WithSessionLock(mgr))
package session
