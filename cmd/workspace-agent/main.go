// workspace-agent attaches the sync core to one project workspace and
// logs the live view. It is the smoke-test binary for the module: point
// it at workspace-stubd (or the real backend) and watch messages,
// typing, and presence flow.
package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmrathod29/seribro-sub002/internal/config"
	"github.com/kmrathod29/seribro-sub002/internal/rest"
	"github.com/kmrathod29/seribro-sub002/internal/session"
	pkgconfig "github.com/kmrathod29/seribro-sub002/pkg/config"
	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Component: "workspace-agent"})
	logger := log.L()

	projectID := pkgconfig.GetEnv("WORKSPACE_PROJECT_ID", "p-1")
	if cfg.API.UserID == "" {
		cfg.API.UserID = "u-student-1"
	}

	sess := session.New(cfg, rest.NewClient(cfg.API), projectID)

	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str(log.FieldProjectID, projectID).Msg("failed to start session")
	}
	defer sess.Close()

	// Lines typed on stdin are sent as messages; everything else is
	// rendered through the periodic view dump below.
	go readInput(ctx, sess, logger)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			logger.Info().Msg("detaching from workspace")
			return
		case <-ticker.C:
			v := sess.View()
			logger.Info().
				Int("messages", len(v.Messages)).
				Int("typing", len(v.Typing)).
				Bool("counterpart_online", v.CounterpartOnline).
				Int("unseen", v.Unseen).
				Str("status", string(v.Status.Status)).
				Int("step", v.Status.StepIndex).
				Msg("workspace view")
		}
	}
}

// readInput treats each stdin line as a draft: keystrokes cannot be
// observed line-buffered, so the typing signal fires once per line
// before the send.
func readInput(ctx context.Context, sess *session.Session, logger *zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sess.TypingActivity(line)
		res := sess.Send(ctx, line, nil)
		if !res.Success {
			logger.Warn().Str("reason", res.Message).Msg("send failed, draft preserved")
			continue
		}
		sess.MarkRead(ctx)
	}
}
