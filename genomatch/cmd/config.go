// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// DefaultConfigFile is read when --config is not given.
var DefaultConfigFile = "~/.genomatch.toml"

// readConfig parses a TOML file. Top-level keys are defaults of flags
// shared by all commands, and a table named after a command, e.g., [search],
// holds defaults for that command only.
func readConfig(file string) (map[string]interface{}, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file: %s", file)
	}

	cfg := make(map[string]interface{})
	if err = toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file: %s", file)
	}
	return cfg, nil
}

// applyConfig sets values of flags not given in the command line.
func applyConfig(cmd *cobra.Command, cfg map[string]interface{}) error {
	var err error
	// values of the command table win over the top-level ones
	if sub, ok := cfg[cmd.Name()].(map[string]interface{}); ok {
		for key, value := range sub {
			if err = setFlag(cmd, key, value); err != nil {
				return err
			}
		}
	}

	for key, value := range cfg {
		if _, ok := value.(map[string]interface{}); ok {
			continue
		}
		if err = setFlag(cmd, key, value); err != nil {
			return err
		}
	}
	return nil
}

func setFlag(cmd *cobra.Command, key string, value interface{}) error {
	flag := cmd.Flags().Lookup(key)
	if flag == nil { // options of other commands
		return nil
	}
	if flag.Changed {
		return nil
	}

	var s string
	switch v := value.(type) {
	case []interface{}:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = fmt.Sprint(item)
		}
		s = strings.Join(items, ",")
	default:
		s = fmt.Sprint(v)
	}

	if err := cmd.Flags().Set(key, s); err != nil {
		return errors.Wrapf(err, "invalid value of %s in config file: %s", key, s)
	}
	return nil
}
