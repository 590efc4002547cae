// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency helpers for the driver worker loops: bounded exponential
// backoff for spin-then-sleep retries, and optional CPU pinning of worker
// threads.
package concurrency
