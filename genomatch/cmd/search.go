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

	"github.com/shenwei356/genomatch/genomatch/genome"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search DNA fragments in reference genomes",
	Long: `Search DNA fragments in reference genomes

Input:
  1. Reference genomes are given via -g/--genomes or -I/--in-dir.
  2. Query fragments are given via -q/--query, or read from FASTA/Q files
     as positional arguments.

Search:
  1. The first m (-m/--min-search-length) bases of a fragment are searched in
     the index, exactly, or with one mismatch (-s/--snp).
  2. The fragment is extended along each candidate position, and for each
     genome only the longest matches (>= -l/--min-match-length) are reported.
     A genome might have multiple longest matches at different positions.

Output (TSV format, 0-based positions):
  1. query,    Query name.
  2. qlen,     Query length.
  3. genome,   Genome name.
  4. length,   Matched length.
  5. position, Matched position in the genome.

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

		minMatchLen := getFlagNonNegativeInt(cmd, "min-match-length")
		snp := getFlagBool(cmd, "snp")
		outFile := getFlagString(cmd, "out-file")
		queries := getQueries(cmd, args, getFlagBool(cmd, "strict"))

		lib := prepareLibrary(cmd, opt)
		m := lib.MinSearchLength()
		if minMatchLen == 0 {
			minMatchLen = m
		} else if minMatchLen < m {
			checkError(fmt.Errorf("the value of flag -l/--min-match-length (%d) should be >= -m/--min-search-length (%d)", minMatchLen, m))
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

		outfh.WriteString("query\tqlen\tgenome\tlength\tposition\n")

		var nMatched int
		for _, q := range queries {
			if q.Len() < minMatchLen {
				log.Warningf("skip query shorter than %d bp: %s", minMatchLen, q.Name)
				continue
			}
			matches, err := lib.FindMatches(q.Seq, minMatchLen, !snp)
			checkError(err)
			if len(matches) > 0 {
				nMatched++
			}
			for _, r := range matches {
				fmt.Fprintf(outfh, "%s\t%d\t%s\t%d\t%d\n", q.Name, q.Len(), r.GenomeName, r.Length, r.Position)
			}
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("%d of %d queries matched", nMatched, len(queries))
		}
	},
}

// getQueries returns fragments given by -q/--query or in FASTA/Q files.
func getQueries(cmd *cobra.Command, args []string, strict bool) []*genome.Genome {
	queries := make([]*genome.Genome, 0, 8)
	for i, s := range getFlagStringSlice(cmd, "query") {
		q, err := genome.New(fmt.Sprintf("query_%d", i+1), []byte(s))
		checkError(err)
		queries = append(queries, q)
	}
	if len(queries) > 0 && len(args) == 0 {
		return queries
	}

	gs, err := readQueryFiles(getFileListFromArgsAndFile(cmd, args, true, "infile-list", true), strict)
	checkError(err)
	return append(queries, gs...)
}

func init() {
	RootCmd.AddCommand(searchCmd)

	addGenomeInputFlags(searchCmd)
	addLibraryFlags(searchCmd)

	searchCmd.Flags().StringSliceP("query", "q", []string{},
		formatFlagUsage(`Query fragments, multiple values are separated by commas.`))

	searchCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of query file list (one file per line). If given, they are appended to files from CLI arguments.`))

	searchCmd.Flags().IntP("min-match-length", "l", 0,
		formatFlagUsage(`Minimum matched length. 0 for the value of -m/--min-search-length.`))

	searchCmd.Flags().BoolP("snp", "s", false,
		formatFlagUsage(`Tolerate one mismatch (SNP) in a match.`))

	searchCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	searchCmd.SetUsageTemplate(usageTemplate("{ -g <genome files> | -I <genome dir> } [-q <fragments> | <query files>]"))
}
