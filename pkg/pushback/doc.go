// Package pushback forwards templated requests to third-party targets off
// the response path.
//
// A Dispatcher renders the outbound request on the caller's goroutine, then
// queues it for a fixed pool of workers. The caller never blocks: when the
// queue is full the delivery is dropped and reported with ErrQueueFull.
// Each delivery is attempted once unless the PushbackSpec carries a RetryPolicy,
// which is capped at mock.MaxRetryAttempts.
//
// Every outcome, including render failures and drops, is passed to the
// hook installed with WithHook.
package pushback
