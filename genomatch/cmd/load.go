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
	"regexp"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/genomatch/genomatch/genome"
	"github.com/shenwei356/genomatch/genomatch/library"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// addGenomeInputFlags adds flags for reading reference genomes.
func addGenomeInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("genomes", "g", []string{},
		formatFlagUsage(`Reference genome files, multiple values are separated by commas.`))

	cmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing reference genome files. Directory symlinks are followed.`))

	cmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression for matching genome files in -I/--in-dir, case ignored.`))

	cmd.Flags().BoolP("strict", "", false,
		formatFlagUsage(`Use the strict FASTA parser: a sequence line has at most 80 bases of ACGTN, and blank lines are not allowed.`))
}

// addLibraryFlags adds flags for building the library.
func addLibraryFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("min-search-length", "m", 10,
		formatFlagUsage(`Minimum search length, i.e., the length of indexed windows. Range: [3, 100].`))
}

// getGenomeFiles returns genome files from -g/--genomes and -I/--in-dir.
func getGenomeFiles(cmd *cobra.Command, opt *Options) []string {
	files := make([]string, 0, 8)
	for _, file := range getFlagStringSlice(cmd, "genomes") {
		file = expandPath(file)
		if !isStdin(file) {
			ok, err := pathutil.Exists(file)
			checkError(errors.Wrapf(err, "checking genome file: %s", file))
			if !ok {
				checkError(fmt.Errorf("genome file does not exist: %s", file))
			}
		}
		files = append(files, file)
	}

	files = append(files, getGenomeFilesFromDir(cmd, opt)...)

	if len(files) == 0 {
		checkError(fmt.Errorf("reference genomes needed, please give them via -g/--genomes or -I/--in-dir"))
	}
	return files
}

// getGenomeFilesFromDir returns files in -I/--in-dir matching -r/--file-regexp.
func getGenomeFilesFromDir(cmd *cobra.Command, opt *Options) []string {
	inDir := getFlagString(cmd, "in-dir")
	if inDir == "" {
		return nil
	}
	inDir = expandPath(inDir)
	isDir, err := pathutil.IsDir(inDir)
	if err != nil {
		checkError(errors.Wrapf(err, "checking -I/--in-dir"))
	}
	if !isDir {
		checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
	}

	reFileStr := getFlagString(cmd, "file-regexp")
	if !reIgnoreCase.MatchString(reFileStr) {
		reFileStr = reIgnoreCaseStr + reFileStr
	}
	reFile, err := regexp.Compile(reFileStr)
	checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))

	files, err := getFileListFromDir(inDir, reFile, opt.NumCPUs)
	checkError(err)
	if len(files) == 0 {
		log.Warningf("no files matching %s found in %s", reFileStr, inDir)
	}
	return files
}

// readGenomeFile reads genomes from a file with the strict or lenient parser.
func readGenomeFile(file string, strict bool) ([]*genome.Genome, error) {
	var genomes []*genome.Genome
	var err error
	if strict {
		genomes, err = genome.LoadFile(file)
	} else {
		genomes, err = genome.ReadFastx(file)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read genome file: %s", file)
	}
	return genomes, nil
}

// readQueryFiles reads query sequences from files in order,
// with the same parser as reference genomes.
func readQueryFiles(files []string, strict bool) ([]*genome.Genome, error) {
	queries := make([]*genome.Genome, 0, 8)
	for _, file := range files {
		gs, err := readGenomeFile(file, strict)
		if err != nil {
			return nil, err
		}
		queries = append(queries, gs...)
	}
	return queries, nil
}

// loadGenomes parses files in parallel and returns genomes in the order of
// files, and then of records in each file.
func loadGenomes(opt *Options, files []string, strict bool) ([]*genome.Genome, error) {
	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)

		chDuration = make(chan time.Duration, opt.NumCPUs)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.EwmaIncrBy(1, t)
			}
			doneDuration <- 1
		}()
	}

	results := make([][]*genome.Genome, len(files))
	errs := make([]error, len(files))

	threads := opt.NumCPUs
	if threads < 1 {
		threads = 1
	}
	var wg sync.WaitGroup
	tokens := make(chan int, threads)
	for i, file := range files {
		tokens <- 1
		wg.Add(1)
		go func(i int, file string) {
			startTime := time.Now()
			defer func() {
				if opt.Verbose {
					chDuration <- time.Since(startTime)
				}
				wg.Done()
				<-tokens
			}()

			results[i], errs[i] = readGenomeFile(file, strict)
		}(i, file)
	}
	wg.Wait()

	if opt.Verbose {
		close(chDuration)
		<-doneDuration
		pbs.Wait()
	}

	n := 0
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		n += len(results[i])
	}

	genomes := make([]*genome.Genome, 0, n)
	for _, gs := range results {
		genomes = append(genomes, gs...)
	}
	return genomes, nil
}

// buildLibrary adds genomes to a new library.
func buildLibrary(opt *Options, genomes []*genome.Genome, m int) (*library.Library, error) {
	lib, err := library.New(m)
	if err != nil {
		return nil, err
	}

	var bases int64
	for _, g := range genomes {
		if err = lib.AddGenome(g); err != nil {
			return nil, errors.Wrapf(err, "add genome: %s", g.Name)
		}
		bases += int64(g.Len())
	}

	if opt.Verbose || opt.Log2File {
		s := lib.Stats()
		log.Infof("  %s genomes with %s bases indexed", humanize.Comma(int64(s.Genomes)), humanize.Comma(bases))
		log.Infof("  %s distinct windows of length %d, %s records, %s tree nodes",
			humanize.Comma(int64(s.Keys)), m, humanize.Comma(int64(s.Records)), humanize.Comma(int64(s.Nodes)))
	}
	return lib, nil
}

// prepareLibrary reads genomes given in the flags and builds a library.
func prepareLibrary(cmd *cobra.Command, opt *Options) *library.Library {
	m := getFlagPositiveInt(cmd, "min-search-length")
	if m < 3 || m > 100 {
		checkError(fmt.Errorf("the value of flag -m/--min-search-length should be in the range of [3, 100]"))
	}
	strict := getFlagBool(cmd, "strict")
	files := getGenomeFiles(cmd, opt)

	timeStart := time.Now()
	if opt.Verbose || opt.Log2File {
		log.Infof("reading %d genome file(s) ...", len(files))
	}

	genomes, err := loadGenomes(opt, files, strict)
	checkError(err)
	if len(genomes) == 0 {
		checkError(fmt.Errorf("no genomes found in the given files"))
	}

	lib, err := buildLibrary(opt, genomes, m)
	checkError(err)

	if opt.Verbose || opt.Log2File {
		log.Infof("library built in %s", time.Since(timeStart))
	}
	return lib
}
