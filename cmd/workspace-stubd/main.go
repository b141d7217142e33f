package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmrathod29/seribro-sub002/internal/domain"
	"github.com/kmrathod29/seribro-sub002/internal/stubserver"
	pkgconfig "github.com/kmrathod29/seribro-sub002/pkg/config"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

func main() {
	log.Init(log.Config{Level: pkgconfig.GetEnv("LOG_LEVEL", "info"), Component: "workspace-stubd"})
	logger := log.L()

	port := pkgconfig.GetEnv("PORT", "8090")

	srv := stubserver.New()
	seedDemo(srv)

	router := srv.Router(log.GinMiddleware(logger))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("workspace stub backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("forced shutdown")
	}
}

// seedDemo registers one workspace so an agent can attach immediately.
func seedDemo(srv *stubserver.Server) {
	student := domain.Participant{ID: "u-student-1", DisplayName: "Asha Verma", Role: domain.RoleStudent}
	company := domain.Participant{ID: "u-company-1", DisplayName: "Nimbus Labs", Role: domain.RoleCompany}
	project := domain.Project{ID: "p-1", Title: "Landing page redesign", Status: "assigned"}

	srv.Seed(project, student, company, []domain.Message{
		{
			ID:                "m-seed-1",
			Body:              "Welcome aboard! The brief is attached to the project page.",
			SenderID:          company.ID,
			SenderRole:        company.Role,
			SenderDisplayName: company.DisplayName,
			CreatedAt:         time.Now().Add(-time.Hour),
		},
	})
}
