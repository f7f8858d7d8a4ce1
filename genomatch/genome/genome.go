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

package genome

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/genomatch/genomatch/util"
	"github.com/shenwei356/xopen"
)

// MaxLineWidth is the maximum number of bases in a sequence line.
var MaxLineWidth = 80

// BufferSize is size of reading buffer
var BufferSize = 65536

// ErrOutOfRange means the region to extract is not in the sequence.
var ErrOutOfRange = errors.New("genome: position out of range")

// ErrInvalidChar means a character other than ACGTN in the sequence.
var ErrInvalidChar = errors.New("genome: invalid character")

// ErrEmptyName means the header line is empty.
var ErrEmptyName = errors.New("genome: empty name")

// ErrEmptySeq means the sequence is empty
var ErrEmptySeq = errors.New("genome: empty seq")

// ErrEmptyLine means a blank line in the sequence block.
var ErrEmptyLine = errors.New("genome: empty line")

// ErrLineTooLong means a sequence line is longer than MaxLineWidth.
var ErrLineTooLong = errors.New("genome: sequence line too long")

// ErrNoHeader means the sequence is not preceded by a header line.
var ErrNoHeader = errors.New("genome: sequence without header")

// Genome is a named DNA sequence with upper-case bases of ACGTN.
type Genome struct {
	Name string
	Seq  []byte
}

// New creates a Genome. The sequence is converted to upper case in place.
func New(name string, s []byte) (*Genome, error) {
	if i := util.InvalidBaseAt(s); i >= 0 {
		return nil, errors.Wrapf(ErrInvalidChar, "%s: %q at position %d", name, s[i], i)
	}
	util.ToUpper(s)
	return &Genome{Name: name, Seq: s}, nil
}

func (g Genome) String() string {
	return fmt.Sprintf("%s, len:%d", g.Name, len(g.Seq))
}

// Len returns the number of bases.
func (g *Genome) Len() int {
	return len(g.Seq)
}

// Extract returns n bases starting from pos (0-based).
// The returned slice shares the memory of the genome, do not modify it.
func (g *Genome) Extract(pos int, n int) ([]byte, error) {
	if pos < 0 || n < 0 || pos+n > len(g.Seq) {
		return nil, ErrOutOfRange
	}
	return g.Seq[pos : pos+n], nil
}

// NumN returns the number of N bases.
func (g *Genome) NumN() int {
	return bytes.Count(g.Seq, []byte{'N'})
}

// Load reads genomes in a strict FASTA format:
//
//  1. a header line starts with ">", followed by a non-empty name;
//  2. sequence lines contain 1 to 80 bases of ACGTN, case ignored;
//  3. every header is followed by at least one sequence line.
//
// Nothing is returned if any error occurs.
func Load(r io.Reader) ([]*Genome, error) {
	genomes := make([]*Genome, 0, 8)

	var name string
	var hasHeader bool
	sequence := make([]byte, 0, 1<<20)

	flush := func(line int) error {
		if len(sequence) == 0 {
			return errors.Wrapf(ErrEmptySeq, "line %d: %s", line, name)
		}
		s := make([]byte, len(sequence))
		copy(s, sequence)
		util.ToUpper(s)
		genomes = append(genomes, &Genome{Name: name, Seq: s})
		sequence = sequence[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, BufferSize), 1<<30)
	var line []byte
	var n int
	for scanner.Scan() {
		n++
		line = bytes.TrimSuffix(scanner.Bytes(), []byte{'\r'})

		if len(line) > 0 && line[0] == '>' {
			if hasHeader {
				if err := flush(n - 1); err != nil {
					return nil, err
				}
			}
			name = string(line[1:])
			if name == "" {
				return nil, errors.Wrapf(ErrEmptyName, "line %d", n)
			}
			hasHeader = true
			continue
		}

		if len(line) == 0 {
			return nil, errors.Wrapf(ErrEmptyLine, "line %d", n)
		}
		if !hasHeader {
			return nil, errors.Wrapf(ErrNoHeader, "line %d", n)
		}
		if len(line) > MaxLineWidth {
			return nil, errors.Wrapf(ErrLineTooLong, "line %d: %d > %d", n, len(line), MaxLineWidth)
		}
		if i := util.InvalidBaseAt(line); i >= 0 {
			return nil, errors.Wrapf(ErrInvalidChar, "line %d: %q at column %d", n, line[i], i+1)
		}
		sequence = append(sequence, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !hasHeader {
		return nil, ErrEmptySeq
	}
	if err := flush(n); err != nil {
		return nil, err
	}
	return genomes, nil
}

// LoadFile reads genomes from a plain or compressed file
// in the strict format of Load. "-" is for stdin.
func LoadFile(file string) ([]*Genome, error) {
	file, err := homedir.Expand(file)
	if err != nil {
		return nil, err
	}
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", file)
	}
	defer fh.Close()

	genomes, err := Load(fh)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return genomes, nil
}

// ReadFastx reads genomes from FASTA/Q files of any line width.
// Names are full headers. Bases other than ACGTN are not allowed.
func ReadFastx(file string) ([]*Genome, error) {
	seq.ValidateSeq = false

	file, err := homedir.Expand(file)
	if err != nil {
		return nil, err
	}
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", file)
	}
	defer fastxReader.Close()

	genomes := make([]*Genome, 0, 8)
	var record *fastx.Record
	var g *Genome
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, file)
		}

		if len(record.Seq.Seq) == 0 {
			return nil, errors.Wrapf(ErrEmptySeq, "%s: %s", file, record.Name)
		}

		// the record is reused by the reader
		s := make([]byte, len(record.Seq.Seq))
		copy(s, record.Seq.Seq)
		g, err = New(string(record.Name), s)
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		genomes = append(genomes, g)
	}

	return genomes, nil
}
