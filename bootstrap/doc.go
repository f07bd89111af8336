// Package bootstrap owns application startup sequencing and lifecycle. The
// App struct is the process's dependency root: every subsystem handle hangs
// off it and is passed down by reference, never reached through globals.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	app.WaitForShutdown()
package bootstrap
