package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitfan"
	"pitfan/internal/config"
	"pitfan/internal/control"
	"pitfan/internal/handlers"
	"pitfan/internal/hal"
	"pitfan/internal/logger"
	"pitfan/internal/repository"
	"pitfan/internal/server"
	"pitfan/internal/service"
	"pitfan/internal/state"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load config.yml; configuration errors are fatal before anything runs
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("invalid configuration", "err", err)
	}
	log := logger.Get(cfg.LogLevel)

	// open DB (journal + operator accounts)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer closeDB(db, log)

	// wire dependencies
	repos := repository.NewRepository(db)
	st := state.New(cfg.Control.DefaultTargetC)
	services := service.NewService(st, repos, cfg.Auth.SigningKey, log)
	apiHandler := handlers.NewHandler(services, log)

	// solve PWM timing; an unachievable frequency is fatal at startup
	timing, err := hal.SolveTiming(cfg.Control.BaseFrequencyHz, cfg.Control.PWMFrequencyHz)
	if err != nil {
		log.Fatalw("pwm timing unachievable", "err", err)
	}
	log.Infow("pwm timing",
		"clock_divisor", timing.ClockDivisor,
		"duty_range", timing.DutyRange,
		"achieved_hz", timing.AchievedFrequencyHz,
	)
	if timing.AchievedFrequencyHz != cfg.Control.PWMFrequencyHz {
		log.Infow("no exact clock and range found",
			"requested_hz", cfg.Control.PWMFrequencyHz,
			"using_hz", timing.AchievedFrequencyHz,
		)
	}

	// open the hardware rig; peripheral setup failures are fatal
	est := control.NewRpmEstimator(cfg.Control.PulsesPerRev)
	rig, err := hal.Open(cfg, est.Pulse, log)
	if err != nil {
		log.Fatalw("hardware setup failed", "err", err)
	}
	if err := rig.PWM.ApplyTiming(timing); err != nil {
		log.Fatalw("pwm setup failed", "err", err)
	}

	// context doubles as the loop's cooperative stop flag
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := control.New(st, rig.Sensor, rig.PWM, timing, est, repos.Events, log)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx, cfg.Control.RefreshInterval)
	}()

	journal(repos, log, pitfan.EventStartup, "Controller started")

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, loopDone, rig, srv, repos, cfg.Control.SpinDownPause, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine. A listener
// that fails to start is fatal (non-zero exit).
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks on termination signals and then runs the shutdown
// sequence in order. Each step is best-effort: a failed step never skips the
// ones after it.
func waitForShutdown(
	cancel context.CancelFunc,
	loopDone <-chan struct{},
	rig *hal.Rig,
	srv *server.Server,
	repos *repository.Repository,
	spinDown time.Duration,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop flag: the loop observes it at the top of the next period
	cancel()
	<-loopDone

	// park the actuator, let the fan spin down, then release the pin to a
	// safe state (input, pulled low)
	if err := rig.PWM.WriteDuty(0); err != nil {
		log.Errorw("failed to park pwm", "err", err)
	}
	time.Sleep(spinDown)
	if err := rig.Close(); err != nil {
		log.Errorw("failed to release hardware", "err", err)
	}

	journal(repos, log, pitfan.EventShutdown, "Controller stopped")

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}

func journal(repos *repository.Repository, log *logger.Logger, typ, msg string) {
	if err := repos.Events.Append(context.Background(), pitfan.Event{Type: typ, Description: msg}); err != nil {
		log.Errorw("journal append failed", "err", err, "type", typ)
	}
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if err := db.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}
