/*
Package eventpipe records analytics events from a long-running client into a
durable local queue and ships them to a remote collector in signed,
compressed batches.

# Overview

An embedding application creates one Pipeline, initializes it, and records
events from any goroutine. Recording never blocks on the network and never
returns an error: every call is handed to a single writer goroutine that
validates the event, persists it to SQLite and keeps per-session
bookkeeping. A timer on the same goroutine delivers queued events every
flush interval.

# Basic Usage

	settings, err := config.Load("eventpipe.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	p, err := eventpipe.New(settings)
	if err != nil {
	    log.Fatal(err)
	}
	defer p.Close(context.Background())

	if err := p.Initialize(ctx); err != nil {
	    log.Fatal(err)
	}

	p.AddDesignEvent(eventpipe.DesignEvent{EventID: "level:boss:defeated"})
	p.AddBusinessEvent(eventpipe.BusinessEvent{
	    Currency: "USD",
	    Amount:   99,
	    ItemType: "boost",
	    ItemID:   "double_xp",
	})

# Delivery

Each delivery cycle claims up to Settings.BatchSize queued events under one
request id, oldest first, and posts them as a JSON array. Only a missing
response puts the batch back for the next cycle; every answer from the
collector, including errors, removes it from the queue.

Timer cycles also release claims left behind by a crash and close sessions
that ended without a session_end event. Session start and end are
delivered immediately in their own cycle.

# Storage Limits

Once the store holds more than Settings.MaxStoreBytes, only session start,
session end and business events are accepted. Others are dropped with a
warning.

# Diagnostics

Events rejected by the validator trigger a diagnostic event sent directly to
the collector. Each diagnostic kind is delivered at most
Settings.ErrorReportCap times per process.

# Observability

Logging uses log/slog (see WithLogger). OpenTelemetry metrics and tracing
are opt-in through WithMetrics and WithTracing.
*/
package eventpipe
