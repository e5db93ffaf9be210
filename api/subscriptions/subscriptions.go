// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package subscriptions streams engine events over websocket.
package subscriptions

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/stakemesh/mesh/api/utils"
	"github.com/stakemesh/mesh/eventdb"
	"github.com/stakemesh/mesh/log"
)

const (
	batchSize    = 256
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var logger = log.WithContext("pkg", "subscriptions")

type Subscriptions struct {
	db       *eventdb.EventDB
	done     chan struct{}
	upgrader websocket.Upgrader
}

func New(db *eventdb.EventDB) *Subscriptions {
	return &Subscriptions{
		db:   db,
		done: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Close stops all active subscriptions.
func (s *Subscriptions) Close() {
	close(s.done)
}

// handleSubscribeEvents upgrades to websocket and streams stored events,
// starting after the sequence number given by the pos query parameter.
// Omitting pos streams events appended from now on.
func (s *Subscriptions) handleSubscribeEvents(w http.ResponseWriter, req *http.Request) error {
	var pos uint64
	if q := req.URL.Query().Get("pos"); q != "" {
		parsed, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "pos"))
		}
		pos = parsed
	} else {
		latest, err := s.latestSeq(req)
		if err != nil {
			return err
		}
		pos = latest
	}

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has already responded
		return nil
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		waiter := s.db.Appended()
		next, err := s.push(req, conn, pos)
		if err != nil {
			return nil
		}
		pos = next

		select {
		case <-s.done:
			return nil
		case <-req.Context().Done():
			return nil
		case <-closed:
			return nil
		case <-waiter.C():
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func (s *Subscriptions) push(req *http.Request, conn *websocket.Conn, pos uint64) (uint64, error) {
	for {
		batch, err := s.db.Since(req.Context(), pos, batchSize)
		if err != nil {
			logger.Debug("subscription read failed", "error", err)
			return pos, err
		}
		for _, ev := range batch {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return pos, err
			}
			pos = ev.Seq
		}
		if uint64(len(batch)) < batchSize {
			return pos, nil
		}
	}
}

func (s *Subscriptions) latestSeq(req *http.Request) (uint64, error) {
	latest, err := s.db.Filter(req.Context(), &eventdb.Filter{
		Order:   eventdb.DESC,
		Options: &eventdb.Options{Limit: 1},
	})
	if err != nil {
		return 0, err
	}
	if len(latest) == 0 {
		return 0, nil
	}
	return latest[0].Seq, nil
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/events").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeEvents))
}
