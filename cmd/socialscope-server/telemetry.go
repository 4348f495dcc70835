package main

import (
	"context"
	"log/slog"

	"socialscope-backend/lib/restyutil"
	"socialscope-backend/lib/scrapers/instagram"
	"socialscope-backend/lib/telemetry"
	"socialscope-backend/lib/util/serviceutil"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	tel, err := telemetry.SetupFromEnv(ctx, "socialscope-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		tel.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)

	if !verbose {
		return
	}

	instagram.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput(".dev/resty/instagram"),
	)
}
