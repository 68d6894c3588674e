package config

// confirmDeletes controls whether destructive commands ask before acting.
// Embedders running prctl non-interactively can call SetConfirmDeletes(false).
var confirmDeletes = true

// SetConfirmDeletes configures whether delete commands prompt for confirmation.
func SetConfirmDeletes(enabled bool) {
	confirmDeletes = enabled
}

// ConfirmDeletes returns the current confirmation setting.
func ConfirmDeletes() bool {
	return confirmDeletes
}
