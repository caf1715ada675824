package biplane

import "github.com/bicycledb/bicycledb/bicerr"

// ErrGuestTrap wraps cause (a wazero trap, or an explicit invariant
// violation) as a bicerr.GuestTrap.
func ErrGuestTrap(cause error, msg string) error {
	return bicerr.Wrap(bicerr.GuestTrap, cause, msg)
}

// ErrCompile wraps cause as a bicerr.CompileError.
func ErrCompile(cause error, msg string) error {
	return bicerr.Wrap(bicerr.CompileError, cause, msg)
}

// ErrResourceLimit is the fixed message §5 specifies for a cooperative
// budget overrun.
var ErrResourceLimit = bicerr.New(bicerr.GuestTrap, "resource limit")
