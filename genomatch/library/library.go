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

package library

import (
	"bytes"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/genomatch/genomatch/genome"
	"github.com/shenwei356/genomatch/genomatch/tree"
	"github.com/shenwei356/genomatch/genomatch/util"
)

// Threads is the maximum number of goroutines used in FindRelated.
var Threads = runtime.NumCPU()

// ErrInvalidArgument means the parameters of a query are not valid.
var ErrInvalidArgument = errors.New("library: invalid argument")

// ErrInvalidMinSearchLength means the minimum search length is < 1.
var ErrInvalidMinSearchLength = errors.New("library: minimum search length should be >= 1")

// ErrTooManyGenomes means the number of genomes exceeds util.MaxGenomes.
var ErrTooManyGenomes = errors.New("library: too many genomes")

// ErrGenomeTooLong means a genome is longer than util.MaxPosition allows.
var ErrGenomeTooLong = errors.New("library: genome too long")

// Library owns a collection of genomes and a prefix tree
// of all their windows of MinSearchLength bases,
// and supports searching fragments and related genomes.
//
// Genomes should all be added before any query,
// AddGenome must not be called concurrently with anything.
// Queries are read-only and safe for concurrent use.
type Library struct {
	m       int
	tree    *tree.Tree
	genomes []*genome.Genome

	bases int
}

// DNAMatch is a match of a fragment in a genome.
type DNAMatch struct {
	GenomeIdx  int    // index of the genome in the library
	GenomeName string // name of the genome
	Length     int    // number of matched bases, including the mismatch
	Position   int    // 0-based start position in the genome
}

// GenomeMatch is a genome related to a query genome.
type GenomeMatch struct {
	GenomeIdx  int
	GenomeName string
	Percent    float64 // percentage of matched windows
	Hits       int     // the number of matched windows
	Windows    int     // the number of sampled windows
}

// New creates an empty library with the given minimum search length.
func New(minSearchLength int) (*Library, error) {
	if minSearchLength < 1 {
		return nil, ErrInvalidMinSearchLength
	}
	return &Library{
		m:       minSearchLength,
		tree:    tree.New(minSearchLength),
		genomes: make([]*genome.Genome, 0, 128),
	}, nil
}

// MinSearchLength returns the length of indexed windows.
func (lib *Library) MinSearchLength() int {
	return lib.m
}

// NumGenomes returns the number of genomes.
func (lib *Library) NumGenomes() int {
	return len(lib.genomes)
}

// Genome returns the i-th genome.
func (lib *Library) Genome(i int) *genome.Genome {
	return lib.genomes[i]
}

// AddGenome adds a genome and indexes all its windows.
// Genomes with bases other than ACGTN are rejected,
// leaving the library unchanged. A genome with lower-case bases
// is stored as an upper-case copy.
func (lib *Library) AddGenome(g *genome.Genome) error {
	idx := len(lib.genomes)
	if idx >= util.MaxGenomes {
		return ErrTooManyGenomes
	}
	if g.Len() > util.MaxPosition {
		return errors.Wrapf(ErrGenomeTooLong, "%s: %d bases", g.Name, g.Len())
	}
	if i := util.InvalidBaseAt(g.Seq); i >= 0 {
		return errors.Wrapf(tree.ErrInvalidBase, "%s: %q at position %d", g.Name, g.Seq[i], i)
	}
	// fragments are compared in upper case
	if hasLower(g.Seq) {
		g = &genome.Genome{Name: g.Name, Seq: bytes.ToUpper(g.Seq)}
	}

	lib.genomes = append(lib.genomes, g)
	lib.bases += g.Len()

	m := lib.m
	s := g.Seq
	var err error
	for i := 0; i+m <= len(s); i++ {
		if _, err = lib.tree.Insert(s[i:i+m], util.Occurrence(idx, i)); err != nil {
			return errors.Wrapf(err, "%s: position %d", g.Name, i)
		}
	}
	return nil
}

// FindMatches finds genomes containing the fragment, or a part of it from
// the beginning of at least minMatchLength bases, exactly or with one
// mismatch if exactOnly is false.
//
// For each genome, only the longest matches are reported, there might be
// multiple ones at different positions. The results are sorted by the
// genome index and then position. No matches is not an error.
func (lib *Library) FindMatches(fragment []byte, minMatchLength int, exactOnly bool) ([]*DNAMatch, error) {
	m := lib.m
	if minMatchLength < m {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"minimum match length (%d) should be >= minimum search length (%d)", minMatchLength, m)
	}
	if minMatchLength > len(fragment) {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"minimum match length (%d) should be <= fragment length (%d)", minMatchLength, len(fragment))
	}
	if hasLower(fragment) {
		fragment = bytes.ToUpper(fragment)
	}

	srs, ok := lib.tree.Search(fragment[:m], !exactOnly)
	if !ok {
		return nil, nil
	}
	defer lib.tree.RecycleSearchResult(srs)

	// sorted by genome and then position
	util.UniqUint64s(srs)
	candidates := *srs

	lens := make([]int, len(candidates))
	for i, v := range candidates {
		lens[i] = matchedLength(lib.genomes[util.OccurrenceIdx(v)].Seq[util.OccurrencePos(v):], fragment, exactOnly)
	}

	var matches []*DNAMatch
	var i, j, idx, best int
	var g *genome.Genome
	for i < len(candidates) {
		// candidates of the same genome
		idx = util.OccurrenceIdx(candidates[i])
		best = 0
		for j = i; j < len(candidates) && util.OccurrenceIdx(candidates[j]) == idx; j++ {
			if lens[j] > best {
				best = lens[j]
			}
		}

		// the longest length wins, shorter ones of this genome are discarded
		if best >= minMatchLength {
			g = lib.genomes[idx]
			for ; i < j; i++ {
				if lens[i] == best {
					matches = append(matches, &DNAMatch{
						GenomeIdx:  idx,
						GenomeName: g.Name,
						Length:     best,
						Position:   util.OccurrencePos(candidates[i]),
					})
				}
			}
		}
		i = j
	}

	return matches, nil
}

// matchedLength returns the length of the longest prefix of q that
// matches t, tolerating one mismatch if exactOnly is false.
// The mismatched base is counted in the length.
func matchedLength(t, q []byte, exactOnly bool) int {
	n := len(q)
	if len(t) < n {
		n = len(t)
	}
	budget := !exactOnly
	for i := 0; i < n; i++ {
		if t[i] == q[i] {
			continue
		}
		if budget {
			budget = false
			continue
		}
		return i
	}
	return n
}

func hasLower(s []byte) bool {
	for _, b := range s {
		if b >= 'a' && b <= 'z' {
			return true
		}
	}
	return false
}

// FindRelated finds genomes sharing at least percentThreshold percent of
// windows with the query. The query is split into consecutive windows of
// windowLength bases, the trailing bases shorter than a window are ignored.
// A genome gets one hit for each window it matches via FindMatches.
//
// The results are sorted by percentage in descending order,
// and then the genome index.
func (lib *Library) FindRelated(query *genome.Genome, windowLength int, exactOnly bool, percentThreshold float64) ([]*GenomeMatch, error) {
	if windowLength < lib.m {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"window length (%d) should be >= minimum search length (%d)", windowLength, lib.m)
	}

	s := query.Seq
	nWindows := len(s) / windowLength
	if nWindows == 0 {
		return nil, nil
	}

	threads := Threads
	if threads < 1 {
		threads = 1
	}

	hits := make([]int, len(lib.genomes))

	// collector
	ch := make(chan []int, threads)
	done := make(chan int)
	go func() {
		for idxs := range ch {
			for _, idx := range idxs {
				hits[idx]++
			}
		}
		done <- 1
	}()

	var wg sync.WaitGroup
	tokens := make(chan int, threads)
	var firstErr error
	var once sync.Once

	var start int
	for i := 0; i < nWindows; i++ {
		start = i * windowLength

		tokens <- 1
		wg.Add(1)
		go func(window []byte) {
			defer func() {
				<-tokens
				wg.Done()
			}()

			matches, err := lib.FindMatches(window, windowLength, exactOnly)
			if err != nil {
				once.Do(func() { firstErr = err })
				return
			}
			if len(matches) == 0 {
				return
			}

			// matches of a genome are adjacent
			idxs := make([]int, 0, len(matches))
			pre := -1
			for _, match := range matches {
				if match.GenomeIdx != pre {
					idxs = append(idxs, match.GenomeIdx)
					pre = match.GenomeIdx
				}
			}
			ch <- idxs
		}(s[start : start+windowLength])
	}
	wg.Wait()
	close(ch)
	<-done

	if firstErr != nil {
		return nil, firstErr
	}

	var results []*GenomeMatch
	var percent float64
	for idx, h := range hits {
		if h == 0 {
			continue
		}
		percent = float64(h) / float64(nWindows) * 100
		if percent < percentThreshold {
			continue
		}
		results = append(results, &GenomeMatch{
			GenomeIdx:  idx,
			GenomeName: lib.genomes[idx].Name,
			Percent:    percent,
			Hits:       h,
			Windows:    nWindows,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Percent == results[j].Percent {
			return results[i].GenomeIdx < results[j].GenomeIdx
		}
		return results[i].Percent > results[j].Percent
	})

	return results, nil
}

// Stats contains basic information of a library.
type Stats struct {
	Genomes int // the number of genomes
	Bases   int // the number of bases of all genomes

	Keys  int // the number of distinct windows
	Nodes int // the number of tree nodes

	Records          int // the number of indexed windows
	MaxRecordsPerKey int // the maximum number of occurrences of a window
}

// Stats returns basic information of the library.
func (lib *Library) Stats() Stats {
	s := Stats{
		Genomes: len(lib.genomes),
		Bases:   lib.bases,
		Keys:    lib.tree.NumLeafNodes(),
		Nodes:   lib.tree.NumNodes(),
	}
	lib.tree.Walk(func(key []byte, v []uint64) bool {
		s.Records += len(v)
		if len(v) > s.MaxRecordsPerKey {
			s.MaxRecordsPerKey = len(v)
		}
		return false
	})
	return s
}
