// Package server manages the bridge's HTTP server lifecycle.
//
// It wraps [net/http.Server] with context-driven shutdown and in-flight
// request draining, followed by ordered cleanup of the resources the
// handlers use:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	srv := server.New(app,
//		server.WithAddr(cfg.Server.Addr),
//		server.WithShutdownStep("downloads", manager.Shutdown),
//	)
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
