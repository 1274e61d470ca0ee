//go:build !windows && !darwin

package hotkey

import "log"

func (e *Engine) startPlatform() error {
	log.Println("Hotkey Engine: Global hooks not supported on this platform; only remote key sources will be used.")
	return nil
}

func (e *Engine) stopPlatform() {}
