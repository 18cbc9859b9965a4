// Package server exposes the pipeline over HTTP: health, run launch and
// tracking, plus read access to the committed mart tables.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/paracelsus/martpipe/helper"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/pipeline"
	"github.com/paracelsus/martpipe/table"
)

// PipelineFn builds a fresh pipeline per launch request so each run picks
// up the current clock for its as-of day.
type PipelineFn func() (*pipeline.Pipeline, error)

type WebServerConfig struct {
	Log         logger.Logger
	Addr        string       `errorTxt:"listen address" mandatory:"yes"`
	Port        int          `errorTxt:"listen port" mandatory:"yes"`
	Store       *table.Store // committed mart tables served read only.
	NewPipeline PipelineFn
}

func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	if err := helper.ValidateStructIsPopulated(web); err != nil {
		return err
	}
	if web.Store == nil || web.NewPipeline == nil {
		return errors.New("web server config requires a store and a pipeline builder")
	}
	// Start the web server.
	srv, chanStopServer := runServer(web.Log, web)
	// Block & wait for completion.
	return waitForServer(web.Log, srv, chanStopServer)
}

// runServer starts a web server and returns:
// 1) the server; and
// 2) a channel that can be used to stop the web server
func runServer(log logger.Logger, web *WebServerConfig) (*http.Server, chan string) {
	chanStopServer := make(chan string, 1)
	allRunInfo := pipeline.NewSafeMapRunInfo()
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      NewRouter(log, web, allRunInfo, chanStopServer), // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking.
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv, chanStopServer
}

// NewRouter creates the mux routes. Split out from runServer so tests can
// drive the handlers through httptest without a listening socket.
func NewRouter(log logger.Logger, web *WebServerConfig, allRunInfo *pipeline.SafeMapRunInfo, chanStopServer chan string) *mux.Router {
	r := mux.NewRouter()
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/stop").HandlerFunc(GetHandlerStopServer(log, chanStopServer))
	r.Path("/runs").Methods(http.MethodPost).HandlerFunc(GetHandlerRunLaunch(log, allRunInfo, web.NewPipeline))
	r.Path("/runs").Methods(http.MethodGet).HandlerFunc(GetHandlerRunList(log, allRunInfo))
	r.Path("/runs/{runId}/status").HandlerFunc(GetHandlerRunStatus(log, allRunInfo))
	r.Path("/marts/{table}").Methods(http.MethodGet).HandlerFunc(GetHandlerMartRows(log, web.Store))
	r.Path("/marts/{table}/query").Methods(http.MethodPost).HandlerFunc(GetHandlerMartQuery(log, web.Store))
	return r
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	wait := time.Second * 15                                       // duration
	ctx, cancel := context.WithTimeout(context.Background(), wait) // create a timeout to wait for.
	defer cancel()                                                 // cancel the timeout.
	err := srv.Shutdown(ctx)                                       // Doesn't block if no connections, but will otherwise wait until the timeout deadline.
	return err
}
