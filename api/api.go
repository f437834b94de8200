// Package api exposes the shielded pool over HTTP: batch submission,
// tree and nullifier queries, verifying-key registration and the recorded
// canonical event log for indexers.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"

	"github.com/shieldpool/shieldpool/events"
	"github.com/shieldpool/shieldpool/merkletree"
	"github.com/shieldpool/shieldpool/nullifiers"
	"github.com/shieldpool/shieldpool/processor"
	"github.com/shieldpool/shieldpool/verifier"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host       string
	Port       int
	Processor  *processor.Processor
	Tree       *merkletree.Manager
	Nullifiers *nullifiers.Set
	Verifier   *verifier.Verifier
	Events     *events.MemorySink
}

// API type represents the API HTTP server.
type API struct {
	router     *chi.Mux
	processor  *processor.Processor
	tree       *merkletree.Manager
	nullifiers *nullifiers.Set
	verifier   *verifier.Verifier
	events     *events.MemorySink
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Processor == nil || conf.Tree == nil || conf.Nullifiers == nil || conf.Verifier == nil {
		return nil, fmt.Errorf("missing API component")
	}
	a := &API{
		processor:  conf.Processor,
		tree:       conf.Tree,
		nullifiers: conf.Nullifiers,
		verifier:   conf.Verifier,
		events:     conf.Events,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", TransactEndpoint, "method", "POST")
	a.router.Post(TransactEndpoint, a.transact)
	log.Infow("register handler", "endpoint", ShieldEndpoint, "method", "POST")
	a.router.Post(ShieldEndpoint, a.shield)
	log.Infow("register handler", "endpoint", TreeEndpoint, "method", "GET")
	a.router.Get(TreeEndpoint, a.treeStatus)
	log.Infow("register handler", "endpoint", TreeRootEndpoint, "method", "GET")
	a.router.Get(TreeRootEndpoint, a.rootStatus)
	log.Infow("register handler", "endpoint", NullifierEndpoint, "method", "GET")
	a.router.Get(NullifierEndpoint, a.nullifierStatus)
	log.Infow("register handler", "endpoint", KeysEndpoint, "method", "POST")
	a.router.Post(KeysEndpoint, a.setKey)
	log.Infow("register handler", "endpoint", EventsEndpoint, "method", "GET")
	a.router.Get(EventsEndpoint, a.eventLog)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
