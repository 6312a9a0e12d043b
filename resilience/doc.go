// Package resilience holds the fault-isolation primitives the execution
// engine composes: circuit breakers (one per operation name, kept in a
// BreakerRegistry), a Bulkhead used as the global concurrency governor,
// bounded Retry with exponential backoff, and a token-bucket RateLimiter
// for admission control.
//
// Breakers fail fast with *CircuitOpenError while open and admit a single
// probe once the recovery timeout has elapsed:
//
//	reg := resilience.NewBreakerRegistry(resilience.DefaultCircuitBreakerConfig(""), nil)
//	done, err := reg.Guard("fetch_user")
//	if err != nil {
//	    return err // *CircuitOpenError
//	}
//	err = callUpstream(ctx)
//	done(err)
//
// When the caller gave up rather than the upstream failing, report the
// outcome wrapped in ErrAbandoned so it is not counted against the breaker.
package resilience
