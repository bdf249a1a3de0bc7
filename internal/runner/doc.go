// Package runner is the load harness.
//
// A run starts Parallelism independent execution units. Each unit performs
// Repetitions strictly sequential requests, validating every body, and stops
// at its first failure. Successes bump a per-run atomic counter, so a clean
// run ends with Succeeded == Parallelism * Repetitions.
//
//	h := runner.New(runner.Options{
//		Parallelism: 10,
//		Repetitions: 5,
//		Factory:     func(unit int) runner.Requester { return newExecutor(unit) },
//		Validate:    func(body string) error { return check(body) },
//	})
//	res := h.Run(ctx)
//	if !res.OK() {
//		log.Printf("%d/%d: %v", res.Succeeded, res.Expected, res.FirstErr)
//	}
//
// By default a failing unit does not disturb the others; FailFast cancels
// them instead. Either way the counter, not the absence of an error, is the
// correctness signal.
//
// Set Options.Recorder to observe every request's latency and outcome, and
// wrap requesters with [WithLogging] to log failures as they happen.
package runner
