/*
Package tracing provides lightweight request tracing.

Spans carry a trace id propagated through the X-Trace-ID and X-Span-ID
headers. Finished spans are buffered (1000 spans) and logged by a single
collector goroutine; a full buffer drops spans rather than blocking the
request.

	tracer := tracing.New("jsrun", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "sandbox.execute")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
