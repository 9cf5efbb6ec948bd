package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"
)

// HTTPServerWorker serves the REST API and the socket endpoint until its
// context is cancelled, then drains in-flight requests.
type HTTPServerWorker struct {
	log             *slog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewHTTPServerWorker(log *slog.Logger, server *http.Server, shutdownTimeout time.Duration) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, server: server, shutdownTimeout: shutdownTimeout}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", w.server.Addr, "at", time.Now().UTC())
		if err := w.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server shutdown incomplete", "error", err)
		return err
	}
	w.log.Info("HTTP server stopped")
	return nil
}
