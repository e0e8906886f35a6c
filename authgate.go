package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/justinas/alice"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/authgate/authorizer"
	"github.com/m-lab/authgate/handler"
	"github.com/m-lab/authgate/secrets"
	"github.com/m-lab/authgate/static"
)

var (
	listenPort string
	cfg        authorizer.Config
)

func init() {
	flag.StringVar(&listenPort, "port", "8080", "Port for authorization requests")
	cfg.RegisterFlags(flag.CommandLine)
}

var mainCtx, mainCancel = context.WithCancel(context.Background())

// newMux registers the gate's routes.
func newMux(c *handler.Client) *http.ServeMux {
	mux := http.NewServeMux()
	// Gateways and proxies ask for a decision on a bearer token.
	mux.HandleFunc("/v1/authorize", c.Authorize)
	// Callers holding a token can see the principal the gate assigns them.
	mux.Handle("/v1/principal", alice.New(c.Protect).ThenFunc(c.Principal))
	mux.HandleFunc("/v1/live", c.Live)
	return mux
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnvWithLog(flag.CommandLine, false), "Failed to read args from env")

	prom := prometheusx.MustServeMetrics()
	defer prom.Close()

	// VERIFIER - load the trusted keys. The process exits if they remain
	// unavailable after the startup backoff.
	a, err := cfg.Load(mainCtx, secrets.NewBackOff())
	rtx.Must(err, "Failed to load verification keys")
	c := handler.NewClient(a)

	srv := &http.Server{
		Addr:              ":" + listenPort,
		Handler:           newMux(c),
		ReadHeaderTimeout: static.ReadHeaderTimeout,
		WriteTimeout:      static.WriteTimeout,
		IdleTimeout:       static.IdleTimeout,
	}
	log.Println("Listening for authorization requests on " + listenPort)
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start server")
	defer srv.Close()
	<-mainCtx.Done()
}
