package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roomcast/roomcast/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting Roomcast server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	srv := server.NewServer()
	srv.Start()

	mux := server.SetupRoutes(srv)
	httpServer := server.CreateServer(config.Port, mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutdown signal received")
		return server.ShutdownServer(httpServer, shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
	}

	if err := srv.Hub().Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}
	if err := srv.Dispatcher().Stop(shutdownTimeout); err != nil {
		log.Printf("Dispatcher stop error: %v", err)
	}

	log.Println("Roomcast server stopped")
}
