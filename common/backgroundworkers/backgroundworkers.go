package backgroundworkers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"goji.io"
	"goji.io/pat"
)

var logger = common.GetFixedPrefixLogger("bgworkers")

type BackgroundWorkerPlugin interface {
	RunBackgroundWorker()
	StopBackgroundWorker(wg *sync.WaitGroup)
}

// Runner starts the background workers of a plugin set and serves the metrics endpoint
type Runner struct {
	Plugins  *common.PluginSet
	HTTPAddr string

	// RESTServerMuxer is available for plugins to add their own routes before Run is called
	RESTServerMuxer *goji.Mux

	restServer *http.Server
}

func NewRunner(plugins *common.PluginSet, httpAddr string) *Runner {
	mux := goji.NewMux()
	mux.Handle(pat.Get("/metrics"), promhttp.Handler())
	mux.HandleFunc(pat.Get("/healthz"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Runner{
		Plugins:         plugins,
		HTTPAddr:        httpAddr,
		RESTServerMuxer: mux,
	}
}

func (r *Runner) RunWorkers() {
	for _, p := range r.Plugins.Plugins {
		if bwc, ok := p.(BackgroundWorkerPlugin); ok {
			logger.Info("Running background worker: ", p.PluginInfo().Name)
			go bwc.RunBackgroundWorker()
		}
	}

	if r.HTTPAddr != "" {
		r.restServer = &http.Server{
			Handler: r.RESTServerMuxer,
			Addr:    r.HTTPAddr,
		}
		go r.runWebserver(r.restServer)
	}
}

func (r *Runner) StopWorkers(wg *sync.WaitGroup) {
	if r.restServer != nil {
		logger.Info("Shutting down http server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		r.restServer.Shutdown(ctx)
		cancel()
	}

	for _, p := range r.Plugins.Plugins {
		if bwc, ok := p.(BackgroundWorkerPlugin); ok {
			logger.Info("Stopping background worker: ", p.PluginInfo().Name)
			wg.Add(1)
			go bwc.StopBackgroundWorker(wg)
		}
	}
}

func (r *Runner) runWebserver(server *http.Server) {
	logger.Info("Starting bgworker http server on ", server.Addr)

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("Failed starting http server")
	}
}
