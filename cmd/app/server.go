package main

import (
	"context"
	"net"
	"net/http"
	"time"
)

// newServer builds the HTTP server. Request contexts derive from
// context.Background so a shutdown signal lets in-flight requests finish;
// onShutdown runs when Shutdown starts and stops the background workers.
func newServer(addr string, handler http.Handler, onShutdown func()) *http.Server {
	// Uploads and the program stream are long lived, so only header reads
	// are bounded.
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.Background() },
	}
	if onShutdown != nil {
		srv.RegisterOnShutdown(onShutdown)
	}
	return srv
}
