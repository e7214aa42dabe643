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

package servecmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/spf13/cobra"
)

const defaultConfigDir = "config"

// CreateServeCMD creates a command that serves the application until it gets SIGINT or SIGTERM.
func CreateServeCMD(logger log.Logger, configure backoffice.ConfigureFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the server",
		Args:  cobra.NoArgs,
	}

	configDir := cmd.Flags().StringP("config", "c", defaultConfigDir, "configuration directory")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return backoffice.Hop(ctx, configure, logger, *configDir)
	}

	return cmd
}

// CreateMigrateCMD creates a command that migrates the database of the application and exits.
func CreateMigrateCMD(logger log.Logger, configure backoffice.ConfigureFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrates the database",
		Args:  cobra.NoArgs,
	}

	configDir := cmd.Flags().StringP("config", "c", defaultConfigDir, "configuration directory")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		conf := backoffice.NewConfigStore(logger, *configDir)
		if _, err := backoffice.LoadConfig(conf); err != nil {
			return err
		}

		conn, err := backoffice.OpenDatabase(conf, logger)
		if err != nil {
			return err
		}

		s, err := backoffice.Pet(conf, logger, conn)
		if err != nil {
			return err
		}

		if configure != nil {
			if err := configure(conf, s, conn); err != nil {
				return err
			}
		}

		if !s.IsMaster() {
			log.Warn(logger).Log("msg", "master mode is disabled, nothing to migrate")
			return nil
		}

		if err := backoffice.Migrate(context.Background(), s); err != nil {
			return err
		}

		log.Info(logger).Log("msg", "database migrated")

		return nil
	}

	return cmd
}
