// Package scheduler implements the cron-trigger wrapper named in spec.md §1
// as deliberately out of the runner's core: it holds a list of (cron
// expression, flow file) entries and invokes internal/runner.Run when an
// entry comes due.
//
// Structure:
//   - scheduler.go — Scheduler, Tick, next-due computation, firing a due entry
//   - cron.go      — cron expression parsing
//   - config.go    — ConfigSpec, the YAML document listing entries
//
// Unlike the teacher's distributed scheduler, there is no leader election
// or shared database here: AetherFlow runs are independent processes each
// owning their own state-store file (spec.md §4.1), so a single scheduler
// process triggering local runner.Run calls needs no advisory lock.
package scheduler
