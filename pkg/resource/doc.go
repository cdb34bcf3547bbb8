// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package resource provides the per-send resource scope. Every temporary file
// and stream created while assembling and sending one AS4 message is owned by
// a Scope and released when the send returns, on every exit path.
package resource
