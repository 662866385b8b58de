/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

// ProgressFunc receives heartbeat messages while a long provider call runs.
// May be nil.
type ProgressFunc func(message string)

// sendProgress delivers a heartbeat, swallowing any panic from the sink.
// Progress reporting must never affect control flow.
func sendProgress(fn ProgressFunc, message string) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(message)
}
