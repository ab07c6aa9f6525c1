// Package config loads the Birch host shell configuration.
//
// Configuration is read from birch.toml or birch.yaml on top of Default().
// Unknown keys are rejected so typos surface as parse errors:
//
//	log_level = "debug"
//
//	[plugins]
//	paths = ["~/.config/birch/plugins", ".birch/plugins"]
//	disabled = ["noisy-plugin"]
//	duplicate_policy = "reject"   # or "replace"
//	revoke_on_unload = true
//	watch = true
//	watch_debounce = "250ms"
//
//	[lua]
//	execution_timeout = "5s"
//
// The configuration is read-only; nothing in Birch writes it back.
package config
