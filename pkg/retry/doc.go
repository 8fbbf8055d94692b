// Package retry provides exponential backoff retry policies for the driver.
//
// # Overview
//
// The package centers on Policy, a value describing how many attempts to make
// and how to space them. Policies are plain data so they can live in
// configuration; Do executes a function under a policy with context
// cancellation support.
//
// # Usage
//
//	policy := retry.Policy{
//	    Attempts:  3,
//	    BaseDelay: 100 * time.Millisecond,
//	    MaxDelay:  5 * time.Second,
//	    Factor:    2.0,
//	    Jitter:    true,
//	}
//
//	err := retry.Do(ctx, policy, func() error {
//	    return transport.Dial()
//	})
//
// The connection uses retry.Single() for its write-path reconnect: one
// attempt, no backoff, so a query issued against a dropped transport either
// recovers immediately or fails fast with a connection-closed error.
//
// Errors wrapped with Permanent are never retried.
package retry
