package main

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownLetsInFlightRequestsFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	reqErr := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		reqErr <- r.Context().Err()
		w.WriteHeader(http.StatusNoContent)
	})

	workersStopped := make(chan struct{})
	srv := newServer("", handler, func() { close(workersStopped) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()
	<-started

	shutdown := make(chan error, 1)
	go func() { shutdown <- srv.Shutdown(context.Background()) }()

	// Workers are told to stop as soon as shutdown begins.
	<-workersStopped
	close(release)

	assert.NoError(t, <-reqErr)
	assert.Equal(t, http.StatusNoContent, <-status)
	assert.NoError(t, <-shutdown)
}

func TestServerBaseContextIsNotCancellable(t *testing.T) {
	srv := newServer(":0", http.NotFoundHandler(), nil)
	require.NotNil(t, srv.BaseContext)

	ctx := srv.BaseContext(nil)
	assert.Nil(t, ctx.Done())
}
