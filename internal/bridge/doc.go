// Package bridge turns a single-shot completion callback into a sequential await.
//
// A transport that reports its outcome through a callback is wrapped in a
// [Registrar]. [Await] hands the registrar a fresh [Completion], then parks the
// calling goroutine until the completion is resolved, the context is done, or
// the optional deadline expires:
//
//	n, err := bridge.Await(ctx, func(c *bridge.Completion[int]) func() {
//		conn.WriteAsync(buf, func(n int, err error) {
//			if err != nil {
//				c.Fail(err)
//				return
//			}
//			c.Succeed(n)
//		})
//		return nil
//	}, bridge.WithTimeout(5*time.Second))
//
// # Resolution
//
// A Completion resolves exactly once. The first Succeed or Fail wins a
// compare-and-set; every later call is a no-op that returns false. When a drop
// logger is configured with [WithDropLogger] those late calls are logged with
// [ErrDoubleResolution].
//
// # Cancellation
//
// If the context is cancelled or the deadline fires first, the completion is
// moved to the cancelled state, the abort func returned by the registrar (if
// any) is called, and Await returns an error matching both [ErrCancelled] and
// the context cause. A resolution arriving after that is discarded.
package bridge
