package arena

import "unsafe"

// uintptrOf returns the starting address of s's backing array, used only
// by tests to check alignment.
func uintptrOf(s []byte) uintptr {
	if len(s) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&s[0]))
}
