// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

const masked = "***"

func mask(s string) string {
	if s == "" {
		return ""
	}
	return masked
}

// Redacted returns a copy of cfg that is safe to log.
func (cfg AppConfig) Redacted() AppConfig {
	out := cfg
	out.Pointer.Secret = mask(cfg.Pointer.Secret)
	out.Admin.Token = mask(cfg.Admin.Token)
	out.Cache.Redis.Password = mask(cfg.Cache.Redis.Password)
	out.Redirect.Markers = append([]string(nil), cfg.Redirect.Markers...)
	return out
}
