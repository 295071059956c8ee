// Package httpserver runs an http.Server bound to a context and provides the
// /health handler.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Run returns once ctx is cancelled and in-flight requests have drained, or
// the shutdown timeout has passed.
package httpserver
