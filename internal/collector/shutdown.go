package collector

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"tft-analyzer/internal/logging"
)

// exit is replaced in tests.
var exit = os.Exit

// SetupSignalHandler returns a context that is cancelled on SIGTERM or SIGINT.
// onShutdown runs before the cancel. A second signal exits immediately.
// stop releases the signal registration and cancels the context.
func SetupSignalHandler(parent context.Context, logger *zap.Logger, onShutdown func(context.Context)) (context.Context, func()) {
	logger = logging.OrNop(logger).Named("signal")
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, finishing current request", zap.Stringer("signal", sig))
		case <-done:
			return
		}

		if onShutdown != nil {
			onShutdown(ctx)
		}
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.Stringer("signal", sig))
			exit(1)
		case <-done:
		}
	}()

	return ctx, stop
}
