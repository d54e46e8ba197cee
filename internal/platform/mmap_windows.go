//go:build windows
// +build windows

package platform

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	procVirtualAlloc = kernel32.NewProc("VirtualAlloc")
	procVirtualFree  = kernel32.NewProc("VirtualFree")
)

const (
	windowsMemCommit            uintptr = 0x00001000
	windowsMemReserve           uintptr = 0x00002000
	windowsMemRelease           uintptr = 0x00008000
	windowsPageExecuteReadWrite uintptr = 0x00000040
)

// MmapCodeSegment commits a region of size bytes with
// read/write/execute permission.
func MmapCodeSegment(size int) ([]byte, error) {
	if size == 0 {
		panic("BUG: MmapCodeSegment with zero length")
	}
	p, _, err := procVirtualAlloc.Call(0, uintptr(size), windowsMemCommit|windowsMemReserve, windowsPageExecuteReadWrite)
	if p == 0 {
		return nil, fmt.Errorf("compiler: VirtualAlloc error: %w", ensureErr(err))
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), size), nil
}

// MunmapCodeSegment releases a region previously returned by
// MmapCodeSegment.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MunmapCodeSegment with zero length")
	}
	r, _, err := procVirtualFree.Call(uintptr(unsafe.Pointer(&code[0])), 0, windowsMemRelease)
	if r == 0 {
		return fmt.Errorf("compiler: VirtualFree error: %w", ensureErr(err))
	}
	return nil
}

// ensureErr returns syscall.EINVAL if the error is nil, which happens
// when the syscall succeeded with a zero return we treat as failure.
func ensureErr(err error) error {
	if err != nil {
		return err
	}
	return syscall.EINVAL
}
