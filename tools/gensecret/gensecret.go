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

package gensecretcmd

import (
	"fmt"

	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/spf13/cobra"
)

// CreateGenSecretCMD creates a command that prints a hex encoded random secret, e.g. for admin_key.
func CreateGenSecretCMD(logger log.Logger) *cobra.Command {
	gscmd := &cobra.Command{
		Use:   "generate-secret",
		Short: "generates a secret value",
		Args:  cobra.NoArgs,
	}

	length := gscmd.Flags().Int("length", 32, "length of the secret value in bytes")
	env := gscmd.Flags().String("env", "", "print the secret as an environment variable assignment with this name")

	gscmd.RunE = func(c *cobra.Command, args []string) error {
		if *length < 16 {
			return fmt.Errorf("a secret must be at least 16 bytes long, got %d", *length)
		}

		secret := util.RandomSecret(*length)
		if *env != "" {
			fmt.Fprintf(c.OutOrStdout(), "%s=%s\n", *env, secret)
			return nil
		}

		fmt.Fprintln(c.OutOrStdout(), secret)

		return nil
	}

	return gscmd
}
