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

// Command backoffice serves the demo catalog admin and hosts the maintenance commands.
package main

import (
	"os"

	"github.com/alien-bunny/backoffice/internal/demo"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/tools/gencert"
	"github.com/alien-bunny/backoffice/tools/gensecret"
	"github.com/alien-bunny/backoffice/tools/serve"
	"github.com/alien-bunny/backoffice/tools/session"
	"github.com/alien-bunny/backoffice/tools/version"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"
)

func main() {
	logger := log.NewProdLogger(os.Stdout, level.AllowInfo())

	rootCmd := &cobra.Command{
		Use:          "backoffice",
		Short:        "backoffice serves an administration interface for a database",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		servecmd.CreateServeCMD(logger, demo.Configure),
		servecmd.CreateMigrateCMD(logger, demo.Configure),
		gensecretcmd.CreateGenSecretCMD(logger),
		gencertcmd.CreateGencertCMD(logger),
		sessioncmd.CreateSessionCMD(logger),
		versioncmd.CreateVersionCMD(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
