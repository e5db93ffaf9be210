// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the http surface of the staking engine.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/stakemesh/mesh/api/admin"
	apievents "github.com/stakemesh/mesh/api/events"
	"github.com/stakemesh/mesh/api/pools"
	"github.com/stakemesh/mesh/api/stakers"
	"github.com/stakemesh/mesh/api/subscriptions"
	"github.com/stakemesh/mesh/api/utils"
	"github.com/stakemesh/mesh/eventdb"
	"github.com/stakemesh/mesh/metrics"
	"github.com/stakemesh/mesh/staking"
)

type Options struct {
	AllowedOrigins string
	EventsLimit    uint64
	EnableMetrics  bool
	// Now supplies the operation time for mutations; wall clock when nil.
	Now func() uint64
}

// New assembles the api router.
// The returned closer stops active subscriptions.
func New(engine *staking.Staking, eventDB *eventdb.EventDB, opts Options) (http.HandlerFunc, func()) {
	if opts.EventsLimit == 0 {
		opts.EventsLimit = 1000
	}
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	pools.New(engine, opts.Now).Mount(router, "/pools")
	stakers.New(engine, opts.Now).Mount(router, "/stakers")
	admin.New(engine).Mount(router, "/admin")

	var subs *subscriptions.Subscriptions
	if eventDB != nil {
		apievents.New(eventDB, opts.EventsLimit).Mount(router, "/events")
		subs = subscriptions.New(eventDB)
		subs.Mount(router, "/subscriptions")
	}

	if opts.EnableMetrics {
		router.Path("/metrics").Handler(metrics.HTTPHandler())
	}
	router.Path("/health").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) error {
			return utils.WriteJSON(w, utils.M{"healthy": true})
		}))

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
	)(handler)

	return handler.ServeHTTP, func() {
		if subs != nil {
			subs.Close()
		}
	}
}
