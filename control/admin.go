// control/admin.go
// Author: momentics <momentics@gmail.com>
//
// HTTP admin surface: driver page, probe dump, Prometheus scrape and pprof.

package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-logr/logr"
)

// PageWriter renders the human-readable driver page.
type PageWriter interface {
	WritePage(w io.Writer) error
}

// AdminServer exposes operational endpoints over HTTP. Intended for
// admin/internal networks only.
type AdminServer struct {
	page     PageWriter
	probes   *DebugProbes
	metrics  *Metrics
	log      logr.Logger
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// NewAdminServer binds addr. The server is not started until Start is called.
// probes and metrics may be nil; their endpoints are then not mounted.
func NewAdminServer(addr string, page PageWriter, probes *DebugProbes, metrics *Metrics, log logr.Logger) (*AdminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	as := newAdminServer(page, probes, metrics, log)
	as.listener = ln
	return as, nil
}

func newAdminServer(page PageWriter, probes *DebugProbes, metrics *Metrics, log logr.Logger) *AdminServer {
	mux := http.NewServeMux()
	as := &AdminServer{
		page:    page,
		probes:  probes,
		metrics: metrics,
		log:     log.WithName("admin"),
		mux:     mux,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}

	mux.HandleFunc("/driver", as.handleDriver)
	if probes != nil {
		mux.HandleFunc("/debug/state", as.handleState)
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return as
}

// Handler returns the routing handler.
func (as *AdminServer) Handler() http.Handler { return as.mux }

// Addr returns the listener's address (useful when binding to ":0").
func (as *AdminServer) Addr() string {
	return as.listener.Addr().String()
}

// Start begins serving HTTP requests. Non-blocking.
func (as *AdminServer) Start() {
	go func() {
		if err := as.Serve(); err != nil {
			as.log.Error(err, "admin server error")
		}
	}()
	as.log.Info("admin server started", "addr", as.Addr())
}

// Serve blocks until the server stops. A graceful Stop returns nil.
func (as *AdminServer) Serve() error {
	if err := as.server.Serve(as.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the admin server.
func (as *AdminServer) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return as.server.Shutdown(ctx)
}

func (as *AdminServer) handleDriver(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := as.page.WritePage(w); err != nil {
		as.log.Error(err, "driver page")
	}
}

func (as *AdminServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(as.probes.DumpState()); err != nil {
		as.log.Error(err, "debug state")
	}
}
