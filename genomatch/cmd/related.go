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
	"time"

	"github.com/spf13/cobra"
)

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Find reference genomes related to query genomes",
	Long: `Find reference genomes related to query genomes

Method:
  1. A query genome is split into consecutive windows of -w/--window bases,
     trailing bases shorter than a window are ignored.
  2. Each window is searched like "genomatch search" with the minimum
     match length equal to the window size.
  3. A reference genome matched by a window gets one hit, and the percentage
     is hits / windows * 100.

Output (TSV format):
  1. query,   Query genome name.
  2. genome,  Reference genome name.
  3. percent, Percentage of matched windows.
  4. hits,    Number of matched windows.
  5. windows, Number of windows of the query.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fh *os.File
		if opt.Log2File {
			fh = addLog(opt.LogFile, opt.Verbose)
		}

		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fh.Close()
			}
		}()

		// ---------------------------------------------------------------

		window := getFlagNonNegativeInt(cmd, "window")
		snp := getFlagBool(cmd, "snp")
		minPercent := getFlagNonNegativeFloat64(cmd, "min-percent")
		if minPercent > 100 {
			checkError(fmt.Errorf("the value of flag -p/--min-percent should be in the range of [0, 100]"))
		}
		outFile := getFlagString(cmd, "out-file")
		strict := getFlagBool(cmd, "strict")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)

		lib := prepareLibrary(cmd, opt)
		m := lib.MinSearchLength()
		if window == 0 {
			window = m << 1
		} else if window < m {
			checkError(fmt.Errorf("the value of flag -w/--window (%d) should be >= -m/--min-search-length (%d)", window, m))
		}

		// ---------------------------------------------------------------

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		outfh.WriteString("query\tgenome\tpercent\thits\twindows\n")

		var nQueries int
		for _, file := range files {
			queries, err := readGenomeFile(file, strict)
			checkError(err)

			for _, q := range queries {
				nQueries++
				if q.Len() < window {
					log.Warningf("query shorter than the window size (%d): %s", window, q.Name)
					continue
				}

				results, err := lib.FindRelated(q, window, !snp, minPercent)
				checkError(err)

				for _, r := range results {
					fmt.Fprintf(outfh, "%s\t%s\t%.2f\t%d\t%d\n", q.Name, r.GenomeName, r.Percent, r.Hits, r.Windows)
				}
			}
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("%d query genome(s) processed", nQueries)
		}
	},
}

func init() {
	RootCmd.AddCommand(relatedCmd)

	addGenomeInputFlags(relatedCmd)
	addLibraryFlags(relatedCmd)

	relatedCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of query file list (one file per line). If given, they are appended to files from CLI arguments.`))

	relatedCmd.Flags().IntP("window", "w", 0,
		formatFlagUsage(`Window size. 0 for 2 * -m/--min-search-length.`))

	relatedCmd.Flags().BoolP("snp", "s", false,
		formatFlagUsage(`Tolerate one mismatch (SNP) in each window.`))

	relatedCmd.Flags().Float64P("min-percent", "p", 0,
		formatFlagUsage(`Minimum percentage of matched windows. Range: [0, 100].`))

	relatedCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	relatedCmd.SetUsageTemplate(usageTemplate("{ -g <genome files> | -I <genome dir> } [query genome files]"))
}
