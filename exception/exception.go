package exception

import (
	"fmt"
	"runtime/debug"

	"zchain/logx"
	"zchain/monitoring"
)

func SafeGo(name string, fn func()) {
	SafeGoWithRecover(name, fn, nil)
}

// SafeGoWithRecover runs fn in a goroutine. A panic is logged, counted and
// handed to onPanic (when non-nil) instead of crashing the process.
func SafeGoWithRecover(name string, fn func(), onPanic func(r interface{})) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", fmt.Sprintf("Panic in %s: %v\n%s", name, r, string(debug.Stack())))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
