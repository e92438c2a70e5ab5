package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robct07/SweetHome/internal/database"
	"github.com/robct07/SweetHome/internal/logging"
	"github.com/robct07/SweetHome/internal/server"
)

const cleanupInterval = time.Hour

func main() {
	port := os.Getenv("SWEETHOME_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SWEETHOME_DB_PATH")
	if dbPath == "" {
		dbPath = "sweethome.db"
	}

	logger := logging.Setup(os.Getenv("SWEETHOME_LOG_LEVEL"))

	inviteTTL := 7 * 24 * time.Hour
	if v := os.Getenv("SWEETHOME_INVITE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid SWEETHOME_INVITE_TTL: %v", err)
		}
		inviteTTL = d
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, server.Config{InviteTTL: inviteTTL}, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Periodic cleanup: expired sessions, overdue invite codes, stale
	// rate limiter entries.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up sessions", "count", n)
				}
				if n, err := srv.InviteStore().ExpireOverdue(); err != nil {
					logger.Error("expire invites", "error", err)
				} else if n > 0 {
					logger.Info("expired invites", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupDone:
				return
			}
		}
	}()

	go func() {
		fmt.Printf("SweetHome running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	close(cleanupDone)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
