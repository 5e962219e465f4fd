// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package config

import "context"

// Loader is the interface for a format-specific pipeline loader.
type Loader interface {
	// Load reads the pipeline definition found at path (a file, or a
	// directory holding exactly one pipeline) and translates it into the
	// format-agnostic model.
	Load(ctx context.Context, path string) (*Pipeline, error)
}
