// Copyright 2024 The EtherDFS Authors. All Rights Reserved.
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

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/jacobsa/daemonize"
	"github.com/kardianos/osext"
	"github.com/megapearl/etherdfs/cfg"
	"github.com/megapearl/etherdfs/internal/clock"
	"github.com/megapearl/etherdfs/internal/fattr"
	"github.com/megapearl/etherdfs/internal/logger"
	"github.com/megapearl/etherdfs/internal/rawsock"
	"github.com/megapearl/etherdfs/internal/server"
)

const successfulStartMessage = "EtherDFS server is up."

// serve is the top of the actual server: it daemonizes unless asked not
// to, builds the drive table, takes the single-instance lock, opens the
// raw socket and runs the event loop until a termination signal.
func serve(config cfg.Config, ifname string, paths []string) (err error) {
	// If we haven't been asked to run in foreground mode, run a daemon
	// with the foreground flag set and wait for it to come up.
	if !config.Foreground {
		var path string
		path, err = osext.Executable()
		if err != nil {
			return fmt.Errorf("osext.Executable: %w", err)
		}

		args := append([]string{"--foreground"}, os.Args[1:]...)
		env := []string{
			fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		}

		err = daemonize.Run(path, args, env, os.Stdout, os.Stderr)
		if err != nil {
			return fmt.Errorf("daemonize.Run: %w", err)
		}
		return nil
	}

	if config.Debug {
		config.Logging.Severity = logger.TRACE
	}
	if err = logger.Init(config.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	// Report the startup outcome to the parent when we were spawned by
	// the daemonize flow above; outside that flow there is nobody
	// listening and the error is irrelevant.
	signalOutcome := func(outcome error) {
		_ = daemonize.SignalOutcome(outcome)
	}

	drives, err := buildDriveTable(paths)
	if err != nil {
		signalOutcome(err)
		return err
	}

	lock := flock.New(config.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		err = fmt.Errorf("lock file %s: %w", config.LockFile, err)
		signalOutcome(err)
		return err
	}
	if !locked {
		err = fmt.Errorf("lock file %s is held: another instance is running", config.LockFile)
		signalOutcome(err)
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warnf("unlock %s: %v", config.LockFile, unlockErr)
		}
		if rmErr := os.Remove(config.LockFile); rmErr != nil {
			logger.Warnf("remove %s: %v", config.LockFile, rmErr)
		}
	}()

	sock, err := rawsock.Open(ifname)
	if err != nil {
		err = fmt.Errorf("open raw socket: %w", err)
		signalOutcome(err)
		return err
	}
	defer sock.Close()

	logger.Infof("listening on %s (%s)", ifname, sock.HardwareAddr())
	logger.Info(successfulStartMessage)
	signalOutcome(nil)

	stop := make(chan struct{})
	registerSignalHandler(stop)

	srv := server.New(sock, drives, clock.RealClock{})
	return srv.Run(stop)
}

// buildDriveTable assigns each path to the next drive letter starting at
// C and probes whether its filesystem is FAT-backed.
func buildDriveTable(paths []string) (server.DriveTable, error) {
	var drives server.DriveTable
	if len(paths) > 24 {
		return drives, fmt.Errorf("too many paths: %d given, 24 drive letters available", len(paths))
	}

	for i, p := range paths {
		if strings.HasSuffix(p, "/") && p != "/" {
			return drives, fmt.Errorf("path %q must not end with a slash", p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return drives, fmt.Errorf("resolving %q: %w", p, err)
		}
		fi, err := os.Stat(abs)
		if err != nil {
			return drives, fmt.Errorf("stat %q: %w", abs, err)
		}
		if !fi.IsDir() {
			return drives, fmt.Errorf("%q is not a directory", abs)
		}

		drive := 2 + i
		fat := fattr.IsFATBacked(abs)
		drives[drive] = &server.Drive{Root: abs, FATBacked: fat}
		logger.Infof("%c: -> %s (fat-backed=%t)", 'A'+drive, abs, fat)
	}
	return drives, nil
}

// registerSignalHandler closes stop on the first termination signal so the
// event loop can wind down between frames.
func registerSignalHandler(stop chan struct{}) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-signalChan
		logger.Infof("received %v, shutting down", sig)
		close(stop)
	}()
}
