package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wellnest/core/internal/jobs"
)

func runWatch(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("watch", s)
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	scheduler := jobs.NewScheduler(a.cfg.Jobs, a.client, a.session, a.log,
		jobs.WithAPITimeout(a.cfg.API.Timeout),
	)
	scheduler.OnUnread = func(count int) {
		fmt.Fprintf(s.out, "%s unread notifications: %d\n", time.Now().Format(time.Kitchen), count)
	}
	scheduler.OnExpired = func() {
		fmt.Fprintln(s.out, "session expired, run `wellnest login` to sign in again")
	}
	if err := scheduler.Start(); err != nil {
		return cmd.fail(fmt.Errorf("start scheduler: %w", err))
	}

	var srv *http.Server
	if a.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.Info().Str("addr", srv.Addr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	<-ctx.Done()
	a.log.Info().Msg("shutdown signal received")

	wait := scheduler.Stop()
	wait()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("metrics shutdown failed")
		}
	}
	return 0
}
