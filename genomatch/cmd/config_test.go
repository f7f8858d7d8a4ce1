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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestApplyConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "genomatch.toml")
	data := []byte(`threads = 4
snp = true
min-search-length = 8

[search]
min-search-length = 20
query = ["ACGTACGTAC", "GGCCGGCCAA"]

[related]
min-percent = 50.5
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Error(err)
		return
	}

	cfg, err := readConfig(file)
	if err != nil {
		t.Error(err)
		return
	}

	newCmd := func(name string) *cobra.Command {
		cmd := &cobra.Command{Use: name}
		cmd.Flags().IntP("threads", "j", 1, "")
		cmd.Flags().IntP("min-search-length", "m", 10, "")
		cmd.Flags().BoolP("snp", "s", false, "")
		cmd.Flags().StringSliceP("query", "q", []string{}, "")
		cmd.Flags().Float64P("min-percent", "p", 0, "")
		return cmd
	}

	// the command table wins over top-level values
	cmd := newCmd("search")
	if err = cmd.Flags().Parse([]string{}); err != nil {
		t.Error(err)
		return
	}
	if err = applyConfig(cmd, cfg); err != nil {
		t.Error(err)
		return
	}
	if v, _ := cmd.Flags().GetInt("min-search-length"); v != 20 {
		t.Errorf("min-search-length: expected %d, returned %d", 20, v)
	}
	if v, _ := cmd.Flags().GetInt("threads"); v != 4 {
		t.Errorf("threads: expected %d, returned %d", 4, v)
	}
	if v, _ := cmd.Flags().GetBool("snp"); !v {
		t.Errorf("snp: expected true")
	}
	if v, _ := cmd.Flags().GetStringSlice("query"); len(v) != 2 || v[1] != "GGCCGGCCAA" {
		t.Errorf("query: unexpected value: %v", v)
	}
	if v, _ := cmd.Flags().GetFloat64("min-percent"); v != 0 {
		t.Errorf("min-percent: expected %f, returned %f", 0.0, v)
	}

	// flags in the command line are kept
	cmd = newCmd("related")
	if err = cmd.Flags().Parse([]string{"-m", "12"}); err != nil {
		t.Error(err)
		return
	}
	if err = applyConfig(cmd, cfg); err != nil {
		t.Error(err)
		return
	}
	if v, _ := cmd.Flags().GetInt("min-search-length"); v != 12 {
		t.Errorf("min-search-length: expected %d, returned %d", 12, v)
	}
	if v, _ := cmd.Flags().GetFloat64("min-percent"); v != 50.5 {
		t.Errorf("min-percent: expected %f, returned %f", 50.5, v)
	}
}

func TestApplyConfigInvalidValue(t *testing.T) {
	cmd := &cobra.Command{Use: "search"}
	cmd.Flags().IntP("min-search-length", "m", 10, "")

	cfg := map[string]interface{}{"min-search-length": "ten"}
	if err := applyConfig(cmd, cfg); err == nil {
		t.Errorf("invalid value should be reported")
	}
}

func TestReadConfigError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(file, []byte("threads = \n"), 0644); err != nil {
		t.Error(err)
		return
	}
	if _, err := readConfig(file); err == nil {
		t.Errorf("malformed config file should be reported")
	}

	if _, err := readConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("missing config file should be reported")
	}
}
