// Copyright 2026 The Dotnope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mediator

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
)

// currentGoroutineID extracts the running goroutine's numeric id from its
// own stack trace header ("goroutine 7 [running]:..."). Go gives no
// supported way to read this; it exists purely to answer the best-effort
// IsRunningInMainThread status query and must never gate enforcement.
func currentGoroutineID() string {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	if _, err := strconv.ParseUint(string(buf), 10, 64); err != nil {
		return ""
	}
	return string(buf)
}

// isPreloadActive reports whether the native plane's LD_PRELOAD mechanism
// is both platform-supported and actually wired into this process's
// environment. Per §2 Non-goals, the native plane is advisory outside
// Linux, so this is unconditionally false elsewhere.
func isPreloadActive() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	preload := os.Getenv("LD_PRELOAD")
	return preload != "" && containsDotnopeInterposer(preload)
}

func containsDotnopeInterposer(preload string) bool {
	return bytes.Contains([]byte(preload), []byte("dotnope"))
}
