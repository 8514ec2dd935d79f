// Package checker implements the session lifecycle and challenge-resolution
// state machine behind automated visa status checks.
//
// A logical check is a Session: it exclusively owns one driven browser page
// (PageAutomator), advances through the phases
//
//	Created -> FormFilled -> AwaitingAnswer -> Submitting -> Completed|Failed
//
// and is tracked in a Registry keyed by random session id. The only cycle is
// Submitting back to FormFilled, the challenge-retry path, bounded by the
// request's retry budget.
//
// The Orchestrator drives sessions through that machine with two entry
// points sharing every step:
//
//   - CheckManual/Resume: the session parks at AwaitingAnswer, the caller
//     gets the challenge image, and a later Resume call with the answer
//     finishes the check. Resume is single-shot.
//   - CheckAuto: a Solver supplies each answer and the orchestrator loops
//     through the retry cycle itself.
//
// A Reaper goroutine sweeps the registry on a fixed interval and releases
// sessions idle past their TTL, so abandoned checks cannot leak browser
// resources. Sessions live only in process memory and do not survive a
// restart.
//
// Failures are classified (see Kind) so calling layers can branch without
// string-matching: transient failures are retried in place, challenge
// rejections drive the retry cycle, and everything else surfaces to the
// caller with a suggestion string kept as data.
package checker
