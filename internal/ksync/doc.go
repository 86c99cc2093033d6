// Package ksync provides the kernel's blocking synchronization primitives:
// a Mesa-style condition variable, a timer-driven Alarm for timed sleeps, and
// a rendezvous Communicator that pairs speakers with listeners.
//
// All three are built only on kthread's block (Scheduler.Sleep) and
// mark-ready (Scheduler.Ready) operations plus short interrupt-disabled
// critical sections. None of them supports timeouts or cancellation: a
// blocked thread stays blocked until the matching wake arrives.
package ksync
