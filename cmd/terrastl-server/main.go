// Command terrastl-server runs the HTTP generation service: POST a
// boundary dataset and a DEM to /generate and download a zip of STLs.
//
// Configuration comes from the environment:
//
//	TERRASTL_ADDR  listen address (default :8000)
//	LOG_LEVEL      debug, info, warn, error
//	LOG_FORMAT     text or json
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/geoforms/terrastl/internal/logging"
	"github.com/geoforms/terrastl/web"
)

func main() {
	log := logging.NewFromEnv()
	addr := os.Getenv("TERRASTL_ADDR")
	if addr == "" {
		addr = ":8000"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           web.NewHandler(log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("terrastl service listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server stopped", "reason", err.Error())
		os.Exit(1)
	}
}
