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

// Command dotnope-guard is the launcher CLI of §6: it spawns a child
// process with LD_PRELOAD, DOTNOPE_POLICY and DOTNOPE_LOG wired so the
// Native Interposer is active for the child's entire lifetime, forwards
// the child's exit code, and re-raises the child's terminating signal
// rather than translating it into an exit code. It is deliberately thin:
// all policy evaluation happens in the runtime mediator the child process
// installs for itself; this binary only prepares the native plane.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/spinualexandru/dotnope/config"
	"github.com/spinualexandru/dotnope/dnlog"
	"github.com/spinualexandru/dotnope/nativepolicy"
)

var (
	checkFlag     bool
	statusFlag    bool
	verboseFlag   bool
	logPathFlag   string
	configPathFlg string
)

var rootCmd = &cobra.Command{
	Use:   "dotnope-guard [script] [-- command args...]",
	Short: "Launch a child process under the dotnope native environment firewall",
	Args:  cobra.ArbitraryArgs,
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVar(&checkFlag, "check", false, "locate the native interposer and exit 0/1")
	rootCmd.Flags().BoolVar(&statusFlag, "status", false, "print platform and preload status")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "log every launcher decision")
	rootCmd.Flags().StringVar(&logPathFlag, "log", "", "interposer decision log path (sets DOTNOPE_LOG)")
	rootCmd.Flags().StringVar(&configPathFlg, "config", "", "environmentWhitelist document path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verboseFlag {
		dnlog.Initialize(os.Stderr)
	}

	libPath, libErr := interposerPath()

	if checkFlag {
		if libErr != nil {
			fmt.Fprintln(os.Stderr, libErr)
			os.Exit(1)
		}
		fmt.Println(libPath)
		return nil
	}

	if statusFlag {
		printStatus(libPath, libErr)
		return nil
	}

	if len(args) == 0 {
		return cmd.Help()
	}

	return launch(libPath, args)
}

func printStatus(libPath string, libErr error) {
	fmt.Printf("platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("preloadSupported: %t\n", runtime.GOOS == "linux")
	if libErr != nil {
		fmt.Printf("interposer: unavailable (%v)\n", libErr)
	} else {
		fmt.Printf("interposer: %s\n", libPath)
	}
	fmt.Printf("LD_PRELOAD: %s\n", os.Getenv("LD_PRELOAD"))
	fmt.Printf("DOTNOPE_POLICY: %s\n", os.Getenv("DOTNOPE_POLICY"))
}

// interposerPath locates the native interposer shared library, built as
// dotnope-interposer.so and expected to sit alongside this binary.
func interposerPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate interposer: %w", err)
	}
	return interposerPathIn(filepath.Dir(self))
}

// interposerPathIn implements interposerPath's lookup against an arbitrary
// directory, split out so the lookup logic can be tested without depending
// on the test binary's own os.Executable() location.
func interposerPathIn(dir string) (string, error) {
	candidate := filepath.Join(dir, "dotnope-interposer.so")
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("locate interposer: %w", err)
	}
	return candidate, nil
}

func launch(libPath string, args []string) error {
	policyStr := "*"
	path := configPathFlg
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if model, err := config.Load(path); err == nil {
			policyStr = nativepolicy.Generate(model)
		} else if verboseFlag {
			dnlog.WarnLog.Printf("dotnope-guard: could not load %s: %v", path, err)
		}
	}

	// "--" is Cobra's own separator between flags and positional args, so
	// by the time we get here args is already just the script/command.
	name, cmdArgs := args[0], args[1:]
	if ext := filepath.Ext(name); ext == ".js" || ext == ".mjs" || ext == ".cjs" {
		cmdArgs = append([]string{name}, cmdArgs...)
		name = "node"
	}

	child := exec.Command(name, cmdArgs...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = append(os.Environ(), "DOTNOPE_POLICY="+policyStr)
	if libPath != "" {
		child.Env = append(child.Env, "LD_PRELOAD="+libPath)
	}
	if logPathFlag != "" {
		child.Env = append(child.Env, "DOTNOPE_LOG="+logPathFlag)
	}

	if verboseFlag {
		dnlog.InfoLog.Printf("dotnope-guard: launching %s with DOTNOPE_POLICY=%q", name, policyStr)
	}

	if err := child.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}

	err := child.Wait()
	if err == nil {
		os.Exit(0)
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return err
	}
	// Re-raise the child's terminating signal on ourselves rather than
	// translating it into an exit code (§6: "on child signal, re-raises
	// the same signal"), so a parent shell sees the same wait-status
	// shape it would have seen without the launcher in between.
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		unix.Kill(os.Getpid(), unix.Signal(ws.Signal()))
	}
	os.Exit(exitErr.ExitCode())
	return nil
}
