// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package citations formats citation markers in streamed text and keeps the
// attached citation list in sync with what is visible so far.
package citations
