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

package gencertcmd

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/alien-bunny/backoffice/lib/certcache"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/spf13/cobra"
)

// CreateGencertCMD creates a command that writes a self-signed key pair for the https.cert_file and https.key_file settings.
func CreateGencertCMD(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-cert host [host...]",
		Short: "generates a self-signed certificate",
		Args:  cobra.MinimumNArgs(1),
	}

	org := cmd.Flags().String("org", "Backoffice", "organization of the certificate")
	certFile := cmd.Flags().String("cert", "cert.pem", "certificate output file")
	keyFile := cmd.Flags().String("key", "key.pem", "private key output file")
	days := cmd.Flags().Int("days", 365, "validity in days")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cert, key, err := certcache.Generate(args, *org, time.Duration(*days)*24*time.Hour)
		if err != nil {
			return err
		}

		if err := ioutil.WriteFile(*certFile, cert, 0644); err != nil {
			return err
		}
		if err := ioutil.WriteFile(*keyFile, key, 0600); err != nil {
			return err
		}

		log.Info(logger).Log("msg", "certificate generated", "cert", *certFile, "key", *keyFile, "hosts", fmt.Sprint(args))

		return nil
	}

	return cmd
}
