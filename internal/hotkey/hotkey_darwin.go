//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

CGEventRef keychordEventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFRunLoopRef keychordRunLoop = NULL;
static CFMachPortRef keychordTap = NULL;
static CFRunLoopSourceRef keychordSource = NULL;
static volatile int keychordStopping = 0;

// Creates the tap and attaches it to the calling thread's run loop.
// Returns -1 if the tap could not be created.
static inline int keychordSetupEventTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) | CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged) |
        CGEventMaskBit(kCGEventLeftMouseDown) | CGEventMaskBit(kCGEventLeftMouseUp) |
        CGEventMaskBit(kCGEventRightMouseDown) | CGEventMaskBit(kCGEventRightMouseUp) |
        CGEventMaskBit(kCGEventOtherMouseDown) | CGEventMaskBit(kCGEventOtherMouseUp);
    keychordTap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        keychordEventCallback,
        (void*)refcon
    );
    if (!keychordTap) {
        return -1;
    }

    keychordStopping = 0;
    keychordSource = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, keychordTap, 0);
    keychordRunLoop = CFRunLoopGetCurrent();
    CFRunLoopAddSource(keychordRunLoop, keychordSource, kCFRunLoopCommonModes);
    CGEventTapEnable(keychordTap, true);
    return 0;
}

// Runs the tap until keychordStopEventTap. The bounded run interval catches
// a stop requested before the loop was entered.
static inline void keychordRunEventTap(void) {
    while (!keychordStopping) {
        CFRunLoopRunInMode(kCFRunLoopDefaultMode, 0.5, false);
    }

    CGEventTapEnable(keychordTap, false);
    CFRunLoopRemoveSource(keychordRunLoop, keychordSource, kCFRunLoopCommonModes);
    CFRelease(keychordSource);
    CFRelease(keychordTap);
    keychordSource = NULL;
    keychordTap = NULL;
    keychordRunLoop = NULL;
}

static inline void keychordStopEventTap(void) {
    keychordStopping = 1;
    if (keychordRunLoop != NULL) {
        CFRunLoopStop(keychordRunLoop);
    }
}
*/
import "C"
import (
	"fmt"
	"log"
	"runtime"
	"runtime/cgo"
	"unsafe"
)

//export keychordEventCallback
func keychordEventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	e := cgo.Handle(uintptr(refcon)).Value().(*Engine)

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		if name, ok := macKeyNames[keyCode]; ok {
			e.feedLocal(name, uint32(keyCode), eventType == C.kCGEventKeyDown)
		}

	case C.kCGEventFlagsChanged:
		// Modifiers arrive as flag changes rather than key down/up. The
		// device-dependent bits tell the left and right keys apart.
		flags := uint64(C.CGEventGetFlags(event))
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		if mask, ok := macModifierMasks[keyCode]; ok {
			e.feedLocal(macKeyNames[keyCode], uint32(keyCode), flags&mask != 0)
		}

	case C.kCGEventLeftMouseDown, C.kCGEventRightMouseDown, C.kCGEventOtherMouseDown,
		C.kCGEventLeftMouseUp, C.kCGEventRightMouseUp, C.kCGEventOtherMouseUp:
		down := eventType == C.kCGEventLeftMouseDown ||
			eventType == C.kCGEventRightMouseDown ||
			eventType == C.kCGEventOtherMouseDown
		button := int64(C.CGEventGetIntegerValueField(event, C.kCGMouseEventButtonNumber))
		e.feedLocal(macButtonName(button), uint32(button), down)
	}

	return event
}

func (e *Engine) startPlatform() error {
	handle := cgo.NewHandle(e)
	started := make(chan error, 1)

	// The tap is attached to the run loop of the thread that created it.
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer handle.Delete()

		if C.keychordSetupEventTap(C.uintptr_t(handle)) != 0 {
			started <- fmt.Errorf("create CGEventTap: accessibility permission missing?")
			return
		}
		started <- nil
		log.Println("Hotkey Engine: macOS CGEventTap started.")

		C.keychordRunEventTap()
		log.Println("Hotkey Engine: macOS CGEventTap stopped.")
	}()

	return <-started
}

func (e *Engine) stopPlatform() {
	C.keychordStopEventTap()
}

// macButtonName follows the Windows numbering: MOUSE2 is middle, MOUSE3 is right.
func macButtonName(button int64) string {
	switch button {
	case 0:
		return "MOUSE1"
	case 1:
		return "MOUSE3"
	case 2:
		return "MOUSE2"
	}
	return fmt.Sprintf("MOUSE%d", button+1)
}

// NX_DEVICE*KEYMASK bits from IOKit's IOLLEvent.h
var macModifierMasks = map[uint16]uint64{
	55: 0x00000008, 54: 0x00000010,
	56: 0x00000002, 60: 0x00000004,
	59: 0x00000001, 62: 0x00002000,
	58: 0x00000020, 61: 0x00000040,
}

var macKeyNames = map[uint16]string{
	55: KeyCmd, 54: KeyCmd,
	56: KeyShift, 60: KeyShift,
	58: KeyAlt, 61: KeyAlt,
	59: KeyCtrl, 62: KeyCtrl,
	49: "SPACE", 36: "ENTER", 53: "ESC", 51: "BACKSPACE", 48: "TAB", 57: "CAPSLOCK",
	116: "PAGEUP", 121: "PAGEDOWN", 119: "END", 115: "HOME", 117: "DELETE",
	123: "LEFT", 124: "RIGHT", 125: "DOWN", 126: "UP",

	0: "A", 11: "B", 8: "C", 2: "D", 14: "E", 3: "F", 5: "G", 4: "H", 34: "I",
	38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O", 35: "P", 12: "Q",
	15: "R", 1: "S", 17: "T", 32: "U", 9: "V", 13: "W", 7: "X", 16: "Y", 6: "Z",

	29: "0", 18: "1", 19: "2", 20: "3", 21: "4", 23: "5", 22: "6", 26: "7", 28: "8", 25: "9",

	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
}
