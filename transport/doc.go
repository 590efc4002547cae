// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport implements the switch-facing TCP listener and the
// non-blocking connection the driver workers poll. On Linux reads and writes
// go straight to the socket descriptor and return immediately; elsewhere a
// very short deadline bounds each call.
package transport
