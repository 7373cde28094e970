// Package httpserver runs the two-factor HTTP surface with sane timeouts and
// graceful shutdown.
//
// Run blocks until its context is canceled, the process receives SIGINT or
// SIGTERM, or Shutdown is called; in-flight requests get the configured
// shutdown timeout to finish. Start failures wrap ErrStart and shutdown
// failures wrap ErrShutdown.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Liveness and Readiness build the /health/live and /health/ready probes; a
// readiness check typically pings the secret store backend.
package httpserver
