// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration.
//
// Values are layered: built-in defaults, then a strict YAML file, then
// MPDGATE_* environment variables. The merged result is validated before
// it is returned.
package config
