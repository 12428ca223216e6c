/*
The sync package implements reposync's synchronization engine. It turns a
flood of filesystem events into at most one status refresh per repository per
debounce window.

There are three moving parts:
1) Dispatcher -- Reads raw change events, resolves each one to the repository
   that owns it, and records the event time in Pending.
2) Pending -- A map from repository root to the time of its most recent
   event. It is the only state shared between the event reader and the
   flusher, and every access goes through its mutex.
3) Scheduler -- Wakes up on a fixed tick, drains the repositories that have
   been quiet for the whole debounce window, and hands each one to the
   Resyncer in its own goroutine.

The debounce is trailing-edge: every event pushes the flush back by another
window. A repository is never flushed twice concurrently. If it is drained
while a previous flush is still running, it is put back into Pending and
picked up on a later tick, so no event is lost.

The Resyncer is the action run for each drained repository. It optionally
refreshes the git hooks, classifies the repository, writes the icon marker,
and asks the file manager to repaint.
*/
package sync
