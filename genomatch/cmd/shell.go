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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shenwei356/genomatch/genomatch/genome"
	"github.com/shenwei356/genomatch/genomatch/library"
	"github.com/shenwei356/genomatch/genomatch/util"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

// DefaultMinSearchLength is the minimum search length of a new library in the shell.
const DefaultMinSearchLength = 10

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell for building a library and searching",
	Long: `Interactive shell for building a library and searching

Commands:
  c   create a new genome library with a given minimum search length
  a   add one genome manually
  l   load one genome file
  d   load all genome files in -I/--in-dir
  e   find exact matches of a DNA fragment
  s   find exact matches and SNiPs of a DNA fragment
  r   find genomes related to a manually given sequence
  f   find genomes related to genomes in a file
  ?   show the menu
  q   quit

The library is initially empty, with a minimum search length of 10.
Related genomes are searched with windows of 2 * minimum search length.
Genome files are read with the strict parser unless --lenient is given.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fh *os.File
		if opt.Log2File {
			fh = addLog(opt.LogFile, opt.Verbose)
			defer fh.Close()
		}

		files := getGenomeFilesFromDir(cmd, opt)

		sh, err := newShell(os.Stdin, os.Stdout, !getFlagBool(cmd, "lenient"), files)
		checkError(err)
		sh.run()
	},
}

type shell struct {
	lib *library.Library

	sc  *bufio.Scanner
	out io.Writer

	strict    bool
	dataFiles []string
}

func newShell(in io.Reader, out io.Writer, strict bool, dataFiles []string) (*shell, error) {
	lib, err := library.New(DefaultMinSearchLength)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, BufferSize), 1<<30)
	return &shell{
		lib:       lib,
		sc:        sc,
		out:       out,
		strict:    strict,
		dataFiles: dataFiles,
	}, nil
}

// readLine prints the prompt and returns the next line.
// ok is false at the end of input.
func (sh *shell) readLine(prompt string) (line string, ok bool) {
	fmt.Fprint(sh.out, prompt)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimRight(sh.sc.Text(), "\r"), true
}

func (sh *shell) showMenu() {
	fmt.Fprintln(sh.out, "        Commands:")
	fmt.Fprintln(sh.out, "         c - create new genome library      s - find matching SNiPs")
	fmt.Fprintln(sh.out, "         a - add one genome manually        r - find related genomes (manual)")
	fmt.Fprintln(sh.out, "         l - load one data file             f - find related genomes (file)")
	fmt.Fprintln(sh.out, "         d - load all data files            ? - show this menu")
	fmt.Fprintln(sh.out, "         e - find matches exactly           q - quit")
}

func (sh *shell) run() {
	fmt.Fprintf(sh.out, "The genome library is initially empty, with a default minimum search length of %d\n",
		DefaultMinSearchLength)
	sh.showMenu()

	for {
		command, ok := sh.readLine("Enter command: ")
		if !ok {
			return
		}
		if command == "" {
			continue
		}

		switch strings.ToLower(command[:1]) {
		case "q":
			return
		case "?":
			sh.showMenu()
		case "c":
			sh.createLibrary()
		case "a":
			sh.addGenome()
		case "l":
			sh.loadFile()
		case "d":
			sh.loadDataFiles()
		case "e":
			sh.findMatches(true)
		case "s":
			sh.findMatches(false)
		case "r":
			sh.findRelatedManual()
		case "f":
			sh.findRelatedFromFile()
		default:
			fmt.Fprintf(sh.out, "Invalid command %s\n", command)
		}
	}
}

func (sh *shell) createLibrary() {
	line, ok := sh.readLine("Enter minimum search length (3-100): ")
	if !ok {
		return
	}
	m, err := parseInt(line)
	if err != nil || m < 3 || m > 100 {
		fmt.Fprintln(sh.out, "Invalid minimum search length.")
		return
	}
	lib, err := library.New(m)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	sh.lib = lib
}

func (sh *shell) addGenome() {
	name, ok := sh.readLine("Enter name: ")
	if !ok {
		return
	}
	if name == "" {
		fmt.Fprintln(sh.out, "Name must not be empty.")
		return
	}
	s, ok := sh.readLine("Enter DNA sequence: ")
	if !ok {
		return
	}
	if s == "" {
		fmt.Fprintln(sh.out, "Sequence must not be empty.")
		return
	}
	if util.InvalidBaseAt([]byte(s)) >= 0 {
		fmt.Fprintln(sh.out, "Invalid character in DNA sequence.")
		return
	}
	g, err := genome.New(name, []byte(s))
	if err == nil {
		err = sh.lib.AddGenome(g)
	}
	if err != nil {
		fmt.Fprintln(sh.out, err)
	}
}

// readFile reads genomes from a file and reports errors to the user.
func (sh *shell) readFile(file string) ([]*genome.Genome, bool) {
	if ok, err := pathutil.Exists(expandPath(file)); err != nil || !ok {
		fmt.Fprintf(sh.out, "Cannot open file: %s\n", file)
		return nil, false
	}
	genomes, err := readGenomeFile(file, sh.strict)
	if err != nil {
		fmt.Fprintf(sh.out, "Improperly formatted file: %s\n", file)
		log.Warning(err)
		return nil, false
	}
	return genomes, true
}

func (sh *shell) addGenomes(genomes []*genome.Genome) bool {
	for _, g := range genomes {
		if err := sh.lib.AddGenome(g); err != nil {
			fmt.Fprintln(sh.out, err)
			return false
		}
	}
	return true
}

func (sh *shell) loadFile() {
	file, ok := sh.readLine("Enter file name: ")
	if !ok {
		return
	}
	if file == "" {
		fmt.Fprintln(sh.out, "No file name entered.")
		return
	}
	genomes, ok := sh.readFile(file)
	if !ok {
		return
	}
	if sh.addGenomes(genomes) {
		fmt.Fprintf(sh.out, "Successfully loaded %d genomes.\n", len(genomes))
	}
}

func (sh *shell) loadDataFiles() {
	if len(sh.dataFiles) == 0 {
		fmt.Fprintln(sh.out, "No data files, please give a directory via -I/--in-dir.")
		return
	}
	for _, file := range sh.dataFiles {
		genomes, ok := sh.readFile(file)
		if !ok {
			continue
		}
		if sh.addGenomes(genomes) {
			fmt.Fprintf(sh.out, "Loaded %d genomes from %s\n", len(genomes), file)
		}
	}
}

func (sh *shell) findMatches(exactOnly bool) {
	var prompt string
	if exactOnly {
		prompt = "Enter DNA sequence for which to find exact matches: "
	} else {
		prompt = "Enter DNA sequence for which to find exact matches and SNiPs: "
	}
	s, ok := sh.readLine(prompt)
	if !ok {
		return
	}
	m := sh.lib.MinSearchLength()
	if len(s) < m {
		fmt.Fprintf(sh.out, "DNA sequence length must be at least %d\n", m)
		return
	}
	line, ok := sh.readLine("Enter minimum sequence match length: ")
	if !ok {
		return
	}
	minMatchLen, err := parseInt(line)
	if err != nil || minMatchLen < m || minMatchLen > len(s) {
		fmt.Fprintf(sh.out, "Minimum match length must be in the range of %d to the sequence length.\n", m)
		return
	}

	matches, err := sh.lib.FindMatches([]byte(s), minMatchLen, exactOnly)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}

	kind := "matches"
	if !exactOnly {
		kind = "matches or SNiPs"
	}
	if len(matches) == 0 {
		fmt.Fprintf(sh.out, "No %s of %s were found.\n", kind, s)
		return
	}
	if !exactOnly {
		kind = "matches and/or SNiPs"
	}
	fmt.Fprintf(sh.out, "%d %s of %s found:\n", len(matches), kind, s)
	for _, r := range matches {
		fmt.Fprintf(sh.out, "  length %d position %d in %s\n", r.Length, r.Position, r.GenomeName)
	}
}

// readRelatedParams reads the percentage threshold and the match mode.
func (sh *shell) readRelatedParams() (pct float64, exactOnly bool, ok bool) {
	line, ok := sh.readLine("Enter match percentage threshold (0-100): ")
	if !ok {
		return 0, false, false
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil || pct < 0 || pct > 100 {
		fmt.Fprintln(sh.out, "Percentage must be in the range 0 to 100.")
		return 0, false, false
	}
	line, ok = sh.readLine("Require (e)xact match or allow (S)NiPs (e or s): ")
	if !ok {
		return 0, false, false
	}
	if line == "" || (line[0] != 'e' && line[0] != 's') {
		fmt.Fprintln(sh.out, "Response must be e or s.")
		return 0, false, false
	}
	return pct, line[0] == 'e', true
}

func (sh *shell) printRelated(indent string, matches []*library.GenomeMatch) {
	if len(matches) == 0 {
		fmt.Fprintln(sh.out, "    No related genomes were found")
		return
	}
	fmt.Fprintf(sh.out, "    %d related genomes were found:\n", len(matches))
	for _, r := range matches {
		fmt.Fprintf(sh.out, "%s%6.2f%%  %s\n", indent, r.Percent, r.GenomeName)
	}
}

func (sh *shell) findRelatedManual() {
	s, ok := sh.readLine("Enter DNA sequence: ")
	if !ok {
		return
	}
	m := sh.lib.MinSearchLength()
	if len(s) < m {
		fmt.Fprintf(sh.out, "DNA sequence length must be at least %d\n", m)
		return
	}
	query, err := genome.New("x", []byte(s))
	if err != nil {
		fmt.Fprintln(sh.out, "Invalid character in DNA sequence.")
		return
	}
	pct, exactOnly, ok := sh.readRelatedParams()
	if !ok {
		return
	}

	matches, err := sh.lib.FindRelated(query, m<<1, exactOnly, pct)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	sh.printRelated(" ", matches)
}

func (sh *shell) findRelatedFromFile() {
	file, ok := sh.readLine("Enter name of file containing one or more genomes to find matches for: ")
	if !ok {
		return
	}
	if file == "" {
		fmt.Fprintln(sh.out, "No file name entered.")
		return
	}
	genomes, ok := sh.readFile(file)
	if !ok {
		return
	}
	pct, exactOnly, ok := sh.readRelatedParams()
	if !ok {
		return
	}

	m := sh.lib.MinSearchLength()
	for _, g := range genomes {
		matches, err := sh.lib.FindRelated(g, m<<1, exactOnly, pct)
		if err != nil {
			fmt.Fprintln(sh.out, err)
			return
		}
		fmt.Fprintf(sh.out, "  For %s\n", g.Name)
		sh.printRelated("     ", matches)
	}
}

func init() {
	RootCmd.AddCommand(shellCmd)

	shellCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing genome files to load with the command "d".`))

	shellCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna|txt)(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression for matching genome files in -I/--in-dir, case ignored.`))

	shellCmd.Flags().BoolP("lenient", "", false,
		formatFlagUsage(`Read genome files with the FASTA/Q parser allowing any line width.`))

	shellCmd.SetUsageTemplate(usageTemplate(""))
}
