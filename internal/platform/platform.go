// Package platform provides the executable memory regions the compiler
// writes native code into. The contract is two calls: map a
// read/write/execute region, and release it.
package platform

import "runtime"

// CompilerSupported reports whether the generated 32-bit x86 code can be
// executed by this process. Compilation itself works anywhere; only
// execution is architecture-bound.
func CompilerSupported() bool {
	return runtime.GOARCH == "386" && (runtime.GOOS == "linux" || runtime.GOOS == "windows" || runtime.GOOS == "freebsd")
}
