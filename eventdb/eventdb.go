// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb persists engine events in sqlite and serves filtered
// queries over them. It implements events.Sink, so it can be plugged
// straight into the staking engine.
package eventdb

import (
	"context"
	"database/sql"
	"math/big"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stakemesh/mesh/co"
	"github.com/stakemesh/mesh/events"
	"github.com/stakemesh/mesh/mesh"
)

const eventTableSchema = `CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	time INTEGER NOT NULL,
	name TEXT NOT NULL,
	user BLOB,
	pool BLOB,
	amount BLOB,
	aux BLOB
);
CREATE INDEX IF NOT EXISTS event_i1 ON event(time);
CREATE INDEX IF NOT EXISTS event_i2 ON event(name);
CREATE INDEX IF NOT EXISTS event_i3 ON event(user);
CREATE INDEX IF NOT EXISTS event_i4 ON event(pool);`

// EventDB stores engine events.
type EventDB struct {
	path     string
	db       *sql.DB
	appended co.Signal
}

// New create or open event db at the given path.
func New(path string) (eventDB *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if eventDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, err
	}
	return &EventDB{path: path, db: db}, nil
}

// NewMem create an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close close the event db.
func (db *EventDB) Close() {
	db.db.Close()
}

func (db *EventDB) Path() string {
	return db.path
}

// Append stores one event and wakes subscribers. It implements events.Sink.
func (db *EventDB) Append(ev *events.Event) error {
	_, err := db.db.Exec(
		"INSERT INTO event(time, name, user, pool, amount, aux) VALUES (?, ?, ?, ?, ?, ?);",
		ev.Time,
		ev.Name,
		ev.User.Bytes(),
		ev.Pool.Bytes(),
		bigBytes(ev.Amount),
		bigBytes(ev.Aux),
	)
	if err != nil {
		return err
	}
	db.appended.Broadcast()
	return nil
}

// Appended returns a waiter signaled whenever a new event is stored.
func (db *EventDB) Appended() co.Waiter {
	return db.appended.NewWaiter()
}

// Order of returned events.
type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range bounds a filter to a time window, inclusive.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Options paginates a filter.
type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Criteria matches events by any combination of name, user and pool.
// Nil fields match everything.
type Criteria struct {
	Name *string       `json:"name"`
	User *mesh.Address `json:"user"`
	Pool *mesh.Address `json:"pool"`
}

// Filter selects stored events. Criteria are OR-ed together.
type Filter struct {
	CriteriaSet []*Criteria `json:"criteriaSet"`
	Range       *Range      `json:"range"`
	Options     *Options    `json:"options"`
	Order       Order       `json:"order"` // default asc
}

// StoredEvent is an event with its assigned sequence number.
type StoredEvent struct {
	Seq uint64 `json:"seq"`
	events.Event
}

// Filter returns stored events matching the filter, nil filter matches all.
func (db *EventDB) Filter(ctx context.Context, filter *Filter) ([]*StoredEvent, error) {
	if filter == nil {
		return db.query(ctx, "SELECT * FROM event")
	}
	var args []any
	stmt := "SELECT * FROM event WHERE 1"
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND time >= ?"
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND time <= ?"
		}
	}
	for i, criteria := range filter.CriteriaSet {
		if i == 0 {
			stmt += " AND ( 1"
		} else {
			stmt += " OR ( 1"
		}
		if criteria.Name != nil {
			args = append(args, *criteria.Name)
			stmt += " AND name = ?"
		}
		if criteria.User != nil {
			args = append(args, criteria.User.Bytes())
			stmt += " AND user = ?"
		}
		if criteria.Pool != nil {
			args = append(args, criteria.Pool.Bytes())
			stmt += " AND pool = ?"
		}
		stmt += ")"
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}
	if filter.Options != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(ctx, stmt, args...)
}

// Since returns up to limit events with a sequence number greater than seq,
// oldest first. It is the polling primitive behind event subscriptions.
func (db *EventDB) Since(ctx context.Context, seq uint64, limit uint64) ([]*StoredEvent, error) {
	return db.query(ctx, "SELECT * FROM event WHERE seq > ? ORDER BY seq ASC LIMIT ?", seq, limit)
}

func (db *EventDB) query(ctx context.Context, stmt string, args ...any) ([]*StoredEvent, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredEvent
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq    uint64
			time   uint64
			name   string
			user   []byte
			pool   []byte
			amount []byte
			aux    []byte
		)
		if err := rows.Scan(&seq, &time, &name, &user, &pool, &amount, &aux); err != nil {
			return nil, err
		}
		out = append(out, &StoredEvent{
			Seq: seq,
			Event: events.Event{
				Time:   time,
				Name:   name,
				User:   mesh.BytesToAddress(user),
				Pool:   mesh.BytesToAddress(pool),
				Amount: new(big.Int).SetBytes(amount),
				Aux:    new(big.Int).SetBytes(aux),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}
