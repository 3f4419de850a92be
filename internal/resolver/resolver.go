// Package resolver decides which version of a record survives a conflict.
//
// The policy is whole-record last-writer-wins on UpdatedAt. Fields are never
// merged. When both versions carry the same UpdatedAt the server version wins,
// so that every device converges on what the server already stores.
package resolver

import (
	"time"

	"github.com/fieldops/fieldsync/internal/domain"
)

// Resolution is the outcome of resolving one conflict
type Resolution struct {
	// Winner is a copy of the surviving version
	Winner *domain.Record
	// Side tells which input won
	Side domain.Side
	// Entry is the audit record for this resolution
	Entry *domain.ConflictLogEntry
}

// ClientWon reports whether the local version survived
func (r Resolution) ClientWon() bool {
	return r.Side == domain.SideClient
}

// Resolver picks a winner between a client and a server version
type Resolver interface {
	Resolve(client, server *domain.Record) Resolution
}

// LastWriterWins is the default Resolver
type LastWriterWins struct {
	now func() time.Time
}

// Option configures LastWriterWins
type Option func(*LastWriterWins)

// WithClock overrides the clock used for ResolvedAt
func WithClock(now func() time.Time) Option {
	return func(l *LastWriterWins) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLastWriterWins creates the default resolver
func NewLastWriterWins(opts ...Option) *LastWriterWins {
	l := &LastWriterWins{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve implements Resolver. Either version may be nil, in which case the
// other one wins.
func (l *LastWriterWins) Resolve(client, server *domain.Record) Resolution {
	side := Pick(client, server)

	var winner *domain.Record
	if side == domain.SideClient {
		winner = client.Clone()
	} else {
		winner = server.Clone()
	}

	entry := &domain.ConflictLogEntry{
		ClientVersion:   client.Clone(),
		ServerVersion:   server.Clone(),
		ResolvedVersion: winner.Clone(),
		Winner:          side,
		ResolvedAt:      l.now().UTC(),
	}
	if ref := firstNonNil(server, client); ref != nil {
		entry.EntityType = ref.Entity
		entry.EntityID = ref.ID
		entry.TenantID = ref.TenantID
	}

	return Resolution{Winner: winner, Side: side, Entry: entry}
}

// Pick returns the winning side using only the two UpdatedAt values.
// Ties go to the server.
func Pick(client, server *domain.Record) domain.Side {
	switch {
	case server == nil && client != nil:
		return domain.SideClient
	case client == nil:
		return domain.SideServer
	case client.UpdatedAt.After(server.UpdatedAt):
		return domain.SideClient
	default:
		return domain.SideServer
	}
}

func firstNonNil(records ...*domain.Record) *domain.Record {
	for _, r := range records {
		if r != nil {
			return r
		}
	}
	return nil
}
