//go:build 386
// +build 386

package stackjit

// The trampolines below invoke code produced by Finish under the 32-bit
// cdecl convention: arguments pushed right to left, result in EAX,
// caller cleans up. They are hand written in call_386.s because Go has
// no way to call an arbitrary code address directly.

// Call0 invokes a compiled function taking no arguments.
func Call0(code uintptr) uint32

// Call1 invokes a compiled function taking one argument.
func Call1(code uintptr, a0 uint32) uint32

// Call2 invokes a compiled function taking two arguments.
func Call2(code uintptr, a0, a1 uint32) uint32
