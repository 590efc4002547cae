// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-switch connection state and the registry that schedules connections
// across worker loops. A Session carries two independent atomic flags:
// Scheduled, held by the single worker reading and dispatching its input,
// and Writing, held by the single committer writing an outbound partition.
// The Registry indexes sessions by datapath id and by transport handle and
// keeps the round-robin pool workers pick from.
package session
