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

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/genomatch/genomatch/genome"
	"github.com/spf13/cobra"
	"github.com/zeebo/wyhash"
	"gonum.org/v1/gonum/stat"
)

var genomesCmd = &cobra.Command{
	Use:   "genomes",
	Short: "List reference genomes",
	Long: `List reference genomes

Output (TSV format):
  1. name,   Genome name.
  2. length, Genome length.
  3. Ns,     Number of N bases.
  4. hash,   Hash value of the sequence, identical sequences have
             the same value.

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

		outFile := getFlagString(cmd, "out-file")
		strict := getFlagBool(cmd, "strict")

		files := getGenomeFiles(cmd, opt)
		genomes, err := loadGenomes(opt, files, strict)
		checkError(err)

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		outfh.WriteString("name\tlength\tNs\thash\n")
		for _, g := range genomes {
			fmt.Fprintf(outfh, "%s\t%d\t%d\t%016x\n", g.Name, g.Len(), g.NumN(), seqHash(g))
		}

		if opt.Verbose || opt.Log2File {
			total, mean, stdev := lengthStats(genomes)
			log.Infof("%s genomes, %s bases", humanize.Comma(int64(len(genomes))), humanize.Comma(total))
			log.Infof("genome length: mean %.1f, stdev %.1f", mean, stdev)
		}
	},
}

func seqHash(g *genome.Genome) uint64 {
	return wyhash.Hash(g.Seq, 1)
}

// lengthStats returns the total, mean and standard deviation of genome lengths.
func lengthStats(genomes []*genome.Genome) (int64, float64, float64) {
	if len(genomes) == 0 {
		return 0, 0, 0
	}
	var total int64
	lens := make([]float64, len(genomes))
	for i, g := range genomes {
		lens[i] = float64(g.Len())
		total += int64(g.Len())
	}
	if len(lens) == 1 {
		return total, lens[0], 0
	}
	mean, stdev := stat.MeanStdDev(lens, nil)
	return total, mean, stdev
}

func init() {
	RootCmd.AddCommand(genomesCmd)

	addGenomeInputFlags(genomesCmd)

	genomesCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	genomesCmd.SetUsageTemplate(usageTemplate("{ -g <genome files> | -I <genome dir> }"))
}
