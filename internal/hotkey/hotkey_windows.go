//go:build windows

package hotkey

import (
	"fmt"
	"log"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msLLHookStruct struct {
	Point       struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// Low-level hook callbacks carry no user pointer, so the active engine is global.
var (
	hookEngine   *Engine
	keyboardHook uintptr
	mouseHook    uintptr
	hookThread   uint32
)

func (e *Engine) startPlatform() error {
	if hookEngine != nil {
		return fmt.Errorf("a hotkey engine is already hooked")
	}
	hookEngine = e
	started := make(chan error, 1)

	// Hooks must be installed on the thread that pumps messages.
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hookThread = windows.GetCurrentThreadId()
		hMod, _, _ := procGetModuleHandle.Call(0)

		var err error
		keyboardHook, _, err = procSetWindowsHookEx.Call(whKeyboardLL, syscall.NewCallback(keyboardProc), hMod, 0)
		if keyboardHook == 0 {
			hookEngine = nil
			started <- fmt.Errorf("set keyboard hook: %w", err)
			return
		}
		mouseHook, _, err = procSetWindowsHookEx.Call(whMouseLL, syscall.NewCallback(mouseProc), hMod, 0)
		if mouseHook == 0 {
			log.Printf("Hotkey Engine: mouse hook unavailable, mouse buttons disabled: %v", err)
		}
		started <- nil
		log.Println("Hotkey Engine: Windows global hooks started.")

		var msg struct {
			Hwnd    syscall.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}
		// GetMessage returns 0 on WM_QUIT and -1 on error.
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}

		procUnhookWindowsHookEx.Call(keyboardHook)
		if mouseHook != 0 {
			procUnhookWindowsHookEx.Call(mouseHook)
		}
		keyboardHook, mouseHook = 0, 0
		hookEngine = nil
		log.Println("Hotkey Engine: Windows global hooks removed.")
	}()

	return <-started
}

func (e *Engine) stopPlatform() {
	if hookThread != 0 {
		procPostThreadMessage.Call(uintptr(hookThread), wmQuit, 0, 0)
	}
}

func keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 && hookEngine != nil {
		kbd := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
		if name := vkCodeToName(kbd.VkCode); name != "" {
			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				hookEngine.feedLocal(name, kbd.VkCode, true)
			case wmKeyUp, wmSysKeyUp:
				hookEngine.feedLocal(name, kbd.VkCode, false)
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 && hookEngine != nil {
		ms := (*msLLHookStruct)(unsafe.Pointer(lParam))
		xButton := "MOUSE5"
		if ms.MouseData>>16 == 1 {
			xButton = "MOUSE4"
		}

		switch wParam {
		case wmLButtonDown:
			hookEngine.feedLocal("MOUSE1", 1, true)
		case wmLButtonUp:
			hookEngine.feedLocal("MOUSE1", 1, false)
		case wmRButtonDown:
			hookEngine.feedLocal("MOUSE3", 3, true)
		case wmRButtonUp:
			hookEngine.feedLocal("MOUSE3", 3, false)
		case wmMButtonDown:
			hookEngine.feedLocal("MOUSE2", 2, true)
		case wmMButtonUp:
			hookEngine.feedLocal("MOUSE2", 2, false)
		case wmXButtonDown:
			hookEngine.feedLocal(xButton, 0, true)
		case wmXButtonUp:
			hookEngine.feedLocal(xButton, 0, false)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(mouseHook, uintptr(nCode), wParam, lParam)
	return ret
}

var vkNames = map[uint32]string{
	0x11: KeyCtrl, 0xA2: KeyCtrl, 0xA3: KeyCtrl,
	0x12: KeyAlt, 0xA4: KeyAlt, 0xA5: KeyAlt,
	0x10: KeyShift, 0xA0: KeyShift, 0xA1: KeyShift,
	0x5B: KeyCmd, 0x5C: KeyCmd,
	0x20: "SPACE",
	0x0D: "ENTER",
	0x1B: "ESC",
	0x08: "BACKSPACE",
	0x09: "TAB",
	0x14: "CAPSLOCK",
	0x21: "PAGEUP",
	0x22: "PAGEDOWN",
	0x23: "END",
	0x24: "HOME",
	0x25: "LEFT",
	0x26: "UP",
	0x27: "RIGHT",
	0x28: "DOWN",
	0x2C: "PRINTSCREEN",
	0x2D: "INSERT",
	0x2E: "DELETE",
	0x13: "PAUSE",
	0x91: "SCROLLLOCK",
}

func vkCodeToName(vk uint32) string {
	if name, ok := vkNames[vk]; ok {
		return name
	}
	switch {
	case vk >= 0x41 && vk <= 0x5A, vk >= 0x30 && vk <= 0x39:
		return string(rune(vk))
	case vk >= 0x70 && vk <= 0x87:
		return fmt.Sprintf("F%d", vk-0x6F)
	}
	return ""
}
