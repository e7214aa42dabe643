// Copyright 2018 Tamás Demeter-Haludka
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

// Package versioncmd prints the version of the back-office binary.
package versioncmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/spf13/cobra"
)

func CreateVersionCMD(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "prints version",
		Args:  cobra.NoArgs,
	}

	verbose := cmd.Flags().BoolP("verbose", "v", false, "print the build details too")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		out := c.OutOrStdout()
		fmt.Fprintln(out, backoffice.VERSION)

		if *verbose {
			printBuild(out)
		}

		return nil
	}

	return cmd
}

func printBuild(out io.Writer) {
	fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			fmt.Fprintf(out, "%s: %s\n", setting.Key, setting.Value)
		}
	}
}
