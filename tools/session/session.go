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

package sessioncmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/spf13/cobra"
)

func decodeArgs(args []string) (session.Session, error) {
	if len(args) == 0 {
		return nil, errors.New("first argument is the encoded session, second is the key (optional)")
	}

	var key session.SecretKey
	if len(args) > 1 {
		var err error
		if key, err = session.ParseSecretKey(args[1]); err != nil {
			return nil, err
		}
	}

	return session.DecodeSession(args[0], key)
}

// CreateSessionCMD creates the commands that inspect and forge session cookies.
func CreateSessionCMD(logger log.Logger) *cobra.Command {
	scmd := &cobra.Command{
		Use:   "session",
		Short: "session-related commands",
	}

	decode := &cobra.Command{
		Use:   "decode encoded [key]",
		Short: "dumps and verifies a session",
		Args:  cobra.RangeArgs(1, 2),
	}

	decode.RunE = func(cmd *cobra.Command, args []string) error {
		sess, err := decodeArgs(args)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(sess))
		for k := range sess {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Println(k + "\t" + sess[k])
		}

		return nil
	}

	flashes := &cobra.Command{
		Use:   "flashes encoded [key]",
		Short: "lists the pending flash messages of a session",
		Args:  cobra.RangeArgs(1, 2),
	}

	flashes.RunE = func(cmd *cobra.Command, args []string) error {
		sess, err := decodeArgs(args)
		if err != nil {
			return err
		}

		for _, f := range sess.Flashes() {
			fmt.Println(f.Kind + "\t" + f.Message)
		}

		return nil
	}

	encode := &cobra.Command{
		Use:   "encode json key",
		Short: "encodes and signs a flat JSON into a session",
		Args:  cobra.ExactArgs(2),
	}

	encode.RunE = func(cmd *cobra.Command, args []string) error {
		var data session.Session
		if err := json.Unmarshal([]byte(args[0]), &data); err != nil {
			return err
		}

		key, err := session.ParseSecretKey(args[1])
		if err != nil {
			return err
		}

		encoded, err := session.EncodeSession(data, key)
		if err != nil {
			return err
		}
		fmt.Println(encoded)

		return nil
	}

	scmd.AddCommand(
		decode,
		flashes,
		encode,
	)

	return scmd
}
