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

// Package dnlog is the package-wide logger shared by the mediator and the
// launcher CLI. It is grounded on
// smtg-ai-claude-squad/log: leveled *log.Logger values writing to a single
// file with a stderr fallback, gated by an environment variable for the
// debug level rather than a structured logging library — the teacher pack
// never reaches for one, so this follows suit.
package dnlog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	InfoLog  *log.Logger
	WarnLog  *log.Logger
	ErrorLog *log.Logger
	DebugLog *log.Logger
)

var debugEnabled = os.Getenv("DOTNOPE_DEBUG") == "true" || os.Getenv("DOTNOPE_DEBUG") == "1"

func init() {
	Initialize(os.Stderr)
}

// Initialize directs every level's logger at w, enabling DebugLog only when
// DOTNOPE_DEBUG is set. Call it again (e.g. with an os.File, as OpenFile
// does) to redirect output after startup.
func Initialize(w io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	InfoLog = log.New(w, "INFO: ", flags)
	WarnLog = log.New(w, "WARN: ", flags)
	ErrorLog = log.New(w, "ERROR: ", flags)
	if debugEnabled {
		DebugLog = log.New(w, "DEBUG: ", flags)
	} else {
		DebugLog = log.New(io.Discard, "", 0)
	}
}

// OpenFile opens path for append, falling back to stderr (and reporting
// the fallback on stderr) if it cannot be created — the same degrade-
// gracefully behavior as smtg-ai-claude-squad/log.Initialize.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnlog: falling back to stderr: %v\n", err)
		Initialize(os.Stderr)
		return nil, err
	}
	Initialize(f)
	return f, nil
}
