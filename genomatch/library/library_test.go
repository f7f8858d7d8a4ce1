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
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/shenwei356/genomatch/genomatch/genome"
	"github.com/shenwei356/genomatch/genomatch/tree"
)

func newLibrary(t *testing.T, m int, data [][2]string) *Library {
	lib, err := New(m)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range data {
		g, err := genome.New(d[0], []byte(d[1]))
		if err != nil {
			t.Fatal(err)
		}
		if err = lib.AddGenome(g); err != nil {
			t.Fatal(err)
		}
	}
	return lib
}

func match2str(matches []*DNAMatch) []string {
	s := make([]string, len(matches))
	for i, m := range matches {
		s[i] = fmt.Sprintf("%s:%d:%d", m.GenomeName, m.Position, m.Length)
	}
	sort.Strings(s)
	return s
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var twoGenomes = [][2]string{
	{"G1", "ACGTACGT"},
	{"G2", "ACGAACGA"},
}

func TestNew(t *testing.T) {
	if _, err := New(0); err != ErrInvalidMinSearchLength {
		t.Errorf("New error: expected %v, returned %v", ErrInvalidMinSearchLength, err)
	}

	lib := newLibrary(t, 4, twoGenomes)
	if lib.MinSearchLength() != 4 {
		t.Errorf("MinSearchLength error: expected %d, returned %d", 4, lib.MinSearchLength())
	}
	if lib.NumGenomes() != 2 || lib.Genome(1).Name != "G2" {
		t.Errorf("unexpected genomes in the library")
	}

	s := lib.Stats()
	// ACGT CGTA GTAC TACG ACGA CGAA GAAC AACG
	if s.Genomes != 2 || s.Bases != 16 || s.Keys != 8 || s.Records != 10 || s.MaxRecordsPerKey != 2 {
		t.Errorf("Stats error: %+v", s)
	}
}

func TestAddGenomeInvalid(t *testing.T) {
	lib := newLibrary(t, 4, twoGenomes)
	err := lib.AddGenome(&genome.Genome{Name: "bad", Seq: []byte("ACGTRACGT")})
	if !errors.Is(err, tree.ErrInvalidBase) {
		t.Errorf("AddGenome error: expected %v, returned %v", tree.ErrInvalidBase, err)
	}
	if lib.NumGenomes() != 2 {
		t.Errorf("AddGenome error: invalid genome should not be added")
	}

	// shorter than m, kept but not indexed
	if err = lib.AddGenome(&genome.Genome{Name: "short", Seq: []byte("ACG")}); err != nil {
		t.Errorf("AddGenome error: %s", err)
	}
	if lib.Stats().Records != 10 {
		t.Errorf("AddGenome error: short genome should not be indexed")
	}
}

func TestAddGenomeLowerCase(t *testing.T) {
	lib := newLibrary(t, 4, nil)
	seq := []byte("acgtacgt")
	if err := lib.AddGenome(&genome.Genome{Name: "low", Seq: seq}); err != nil {
		t.Error(err)
		return
	}
	if string(seq) != "acgtacgt" {
		t.Errorf("AddGenome should not modify the given sequence: %s", seq)
	}
	if s := string(lib.Genome(0).Seq); s != "ACGTACGT" {
		t.Errorf("stored sequence: expected %s, returned %s", "ACGTACGT", s)
	}

	matches, err := lib.FindMatches([]byte("ACGTACGT"), 4, true)
	if err != nil {
		t.Error(err)
		return
	}
	if len(matches) != 1 || matches[0].Length != 8 || matches[0].Position != 0 {
		t.Errorf("self-match of a lower-case genome: unexpected results: %v", matches)
	}

	matches, _ = lib.FindMatches([]byte("acgTACGA"), 4, false)
	if len(matches) != 1 || matches[0].Length != 8 {
		t.Errorf("lower-case fragment with a SNP: unexpected results: %v", matches)
	}
}

func TestFindMatchesScenario(t *testing.T) {
	lib := newLibrary(t, 4, twoGenomes)

	matches, err := lib.FindMatches([]byte("ACGT"), 4, true)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"G1:0:4", "G1:4:4"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}

	matches, err = lib.FindMatches([]byte("ACGA"), 4, true)
	if err != nil {
		t.Fatal(err)
	}
	expected = []string{"G2:0:4", "G2:4:4"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}

	// ACGA finds ACGT with a mismatch at the last base
	matches, err = lib.FindMatches([]byte("ACGA"), 4, false)
	if err != nil {
		t.Fatal(err)
	}
	expected = []string{"G1:0:4", "G1:4:4", "G2:0:4", "G2:4:4"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}

	// lower case
	matches, _ = lib.FindMatches([]byte("acgt"), 4, true)
	if len(matches) != 2 {
		t.Errorf("FindMatches error: lower case fragment expected %d matches, returned %d", 2, len(matches))
	}

	// not found is not an error
	matches, err = lib.FindMatches([]byte("TTTT"), 4, false)
	if err != nil || len(matches) != 0 {
		t.Errorf("FindMatches error: expected no matches, returned %v (%v)", matches, err)
	}
}

func TestFindMatchesInvalidArgument(t *testing.T) {
	lib := newLibrary(t, 4, twoGenomes)

	tests := []struct {
		fragment string
		minLen   int
	}{
		{"ACGTACGT", 3},
		{"ACGT", 0},
		{"ACGT", 5},
		{"ACG", 4},
	}
	for _, test := range tests {
		for _, exactOnly := range []bool{true, false} {
			matches, err := lib.FindMatches([]byte(test.fragment), test.minLen, exactOnly)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("FindMatches error: %s, %d, expected %v, returned %v", test.fragment, test.minLen, ErrInvalidArgument, err)
			}
			if matches != nil {
				t.Errorf("FindMatches error: no results expected for invalid arguments")
			}
		}
	}

	// regardless of the index content
	empty, _ := New(4)
	if _, err := empty.FindMatches([]byte("ACGTACGT"), 2, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("FindMatches error: expected %v, returned %v", ErrInvalidArgument, err)
	}
}

func TestFindMatchesLongest(t *testing.T) {
	lib := newLibrary(t, 4, [][2]string{
		{"g", "ACGTAAAAACGTCCCC"},
		{"h", "TTTTACGTCCGG"},
	})

	// g: 4 bases at 0, 8 bases at 8; only the longest one is kept.
	// h: ACGTCC at 4, 6 bases
	matches, err := lib.FindMatches([]byte("ACGTCCCC"), 4, true)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"g:8:8", "h:4:6"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}

	// h does not reach 7 bases
	matches, _ = lib.FindMatches([]byte("ACGTCCCC"), 7, true)
	expected = []string{"g:8:8"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}

	// with one mismatch, h: ACGTCCGG vs ACGTCCCC, the mismatch is counted,
	// the second one stops the extension.
	matches, _ = lib.FindMatches([]byte("ACGTCCCC"), 7, false)
	expected = []string{"g:8:8", "h:4:7"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}

	// the mismatch might be outside the first m bases
	lib = newLibrary(t, 4, [][2]string{{"x", "ACGTTTTT"}})
	matches, _ = lib.FindMatches([]byte("ACGTTATT"), 8, false)
	expected = []string{"x:0:8"}
	if r := match2str(matches); !equalStrings(r, expected) {
		t.Errorf("FindMatches error: expected %v, returned %v", expected, r)
	}
	matches, _ = lib.FindMatches([]byte("ACGTTATT"), 8, true)
	if len(matches) != 0 {
		t.Errorf("FindMatches error: expected no matches, returned %v", match2str(matches))
	}
}

func TestFindMatchesSameName(t *testing.T) {
	lib := newLibrary(t, 4, [][2]string{
		{"dup", "CCCCACGTAC"},
		{"dup", "ACGTACGGGG"},
	})
	matches, err := lib.FindMatches([]byte("ACGTAC"), 4, true)
	if err != nil {
		t.Fatal(err)
	}
	// genomes are distinguished by identity, not by name
	if len(matches) != 2 || matches[0].GenomeIdx != 0 || matches[1].GenomeIdx != 1 {
		t.Errorf("FindMatches error: expected matches in both genomes, returned %v", match2str(matches))
	}
}

func randSeq(r *rand.Rand, n int, alphabet string) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = alphabet[r.Intn(len(alphabet))]
	}
	return s
}

// bruteForce finds matches without the tree.
func bruteForce(lib *Library, fragment []byte, minLen int, exactOnly bool) []string {
	m := lib.MinSearchLength()
	var matches []*DNAMatch
	for idx := 0; idx < lib.NumGenomes(); idx++ {
		g := lib.Genome(idx)
		lens := make(map[int]int)
		best := 0
		for p := 0; p+m <= g.Len(); p++ {
			if g.Seq[p] != fragment[0] {
				continue
			}
			var mm int
			for i := 0; i < m; i++ {
				if g.Seq[p+i] != fragment[i] {
					mm++
				}
			}
			if mm > 1 || (exactOnly && mm > 0) {
				continue
			}
			l := matchedLength(g.Seq[p:], fragment, exactOnly)
			lens[p] = l
			if l > best {
				best = l
			}
		}
		if best < minLen {
			continue
		}
		for p, l := range lens {
			if l == best {
				matches = append(matches, &DNAMatch{GenomeIdx: idx, GenomeName: g.Name, Length: l, Position: p})
			}
		}
	}
	return match2str(matches)
}

func TestFindMatchesRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	m := 4
	data := make([][2]string, 10)
	for i := range data {
		data[i] = [2]string{fmt.Sprintf("g%d", i), string(randSeq(r, 200+r.Intn(100), "ACGT"))}
	}
	lib := newLibrary(t, m, data)

	for i := 0; i < 500; i++ {
		var fragment []byte
		n := m + r.Intn(12)
		if i%2 == 0 { // from a genome, with a possible substitution
			g := lib.Genome(r.Intn(lib.NumGenomes()))
			p := r.Intn(g.Len() - n)
			fragment = append([]byte{}, g.Seq[p:p+n]...)
			fragment[r.Intn(n)] = "ACGT"[r.Intn(4)]
		} else {
			fragment = randSeq(r, n, "ACGTN")
		}
		minLen := m + r.Intn(n-m+1)

		for _, exactOnly := range []bool{true, false} {
			matches, err := lib.FindMatches(fragment, minLen, exactOnly)
			if err != nil {
				t.Fatal(err)
			}
			result := match2str(matches)
			expected := bruteForce(lib, fragment, minLen, exactOnly)
			if !equalStrings(result, expected) {
				t.Errorf("FindMatches error: %s, %d, %v, expected %v, returned %v",
					fragment, minLen, exactOnly, expected, result)
			}
		}
	}
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	m := 5
	data := make([][2]string, 8)
	for i := range data {
		data[i] = [2]string{fmt.Sprintf("genome %d", i), string(randSeq(r, 100+r.Intn(200), "ACGTN"))}
	}
	lib := newLibrary(t, m, data)
	lib2 := newLibrary(t, m, data)

	// self-match
	for idx := 0; idx < lib.NumGenomes(); idx++ {
		g := lib.Genome(idx)
		matches, err := lib.FindMatches(g.Seq, m, true)
		if err != nil {
			t.Fatal(err)
		}
		var found bool
		for _, match := range matches {
			if match.GenomeIdx == idx && match.Position == 0 && match.Length == g.Len() {
				found = true
			}
		}
		if !found {
			t.Errorf("self-match error: %s not found", g.Name)
		}
	}

	for i := 0; i < 200; i++ {
		g := lib.Genome(r.Intn(lib.NumGenomes()))
		n := m + r.Intn(20)
		p := r.Intn(g.Len() - n)
		fragment := append([]byte{}, g.Seq[p:p+n]...)
		if i%3 == 0 {
			fragment[r.Intn(n)] = 'A'
		}
		minLen := m + r.Intn(n-m+1)

		exact, _ := lib.FindMatches(fragment, minLen, true)
		snp, _ := lib.FindMatches(fragment, minLen, false)

		// exact ones are a subset of these with SNPs, by genome
		genomes := make(map[int]bool)
		for _, match := range snp {
			genomes[match.GenomeIdx] = true
		}
		for _, match := range exact {
			if !genomes[match.GenomeIdx] {
				t.Errorf("exact match of %s in %s not found in SNP mode", fragment, match.GenomeName)
			}
		}

		// rebuilding gives the same results
		snp2, _ := lib2.FindMatches(fragment, minLen, false)
		if !equalStrings(match2str(snp), match2str(snp2)) {
			t.Errorf("results of identical libraries differ: %v, %v", match2str(snp), match2str(snp2))
		}
	}
}

func TestFindRelated(t *testing.T) {
	lib := newLibrary(t, 4, twoGenomes)

	// two windows, both match G1
	q, _ := genome.New("q", []byte("ACGTACGT"))
	results, err := lib.FindRelated(q, 4, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].GenomeName != "G1" || results[0].Percent != 100 {
		t.Errorf("FindRelated error: expected G1 at 100%%, returned %v", results)
	}

	// one of two windows matches each genome
	q, _ = genome.New("q", []byte("ACGTACGAT"))
	results, err = lib.FindRelated(q, 4, true, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("FindRelated error: expected %d genomes, returned %d", 2, len(results))
	}
	for i, name := range []string{"G1", "G2"} {
		if results[i].GenomeName != name || results[i].Percent != 50 || results[i].Hits != 1 || results[i].Windows != 2 {
			t.Errorf("FindRelated error: expected %s at 50%%, returned %+v", name, *results[i])
		}
	}

	// threshold
	results, _ = lib.FindRelated(q, 4, true, 50.1)
	if len(results) != 0 {
		t.Errorf("FindRelated error: expected no genomes, returned %v", results)
	}

	// SNPs: both windows match both genomes
	results, _ = lib.FindRelated(q, 4, false, 100)
	if len(results) != 2 {
		t.Errorf("FindRelated error: expected %d genomes, returned %d", 2, len(results))
	}

	// invalid window length
	if _, err = lib.FindRelated(q, 3, true, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("FindRelated error: expected %v, returned %v", ErrInvalidArgument, err)
	}

	// query shorter than a window
	results, err = lib.FindRelated(q, 10, true, 0)
	if err != nil || len(results) != 0 {
		t.Errorf("FindRelated error: expected nothing, returned %v, %v", results, err)
	}
}

func TestFindRelatedFraction(t *testing.T) {
	lib := newLibrary(t, 4, twoGenomes)

	// 1 of 3 windows
	q, _ := genome.New("q", []byte("ACGTTTTTCCCC"))
	results, err := lib.FindRelated(q, 4, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || math.Abs(results[0].Percent-100.0/3) > 1e-9 {
		t.Errorf("FindRelated error: expected G1 at %f%%, returned %v", 100.0/3, results)
	}
}

func TestFindRelatedThreads(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	m := 6
	data := make([][2]string, 20)
	for i := range data {
		data[i] = [2]string{fmt.Sprintf("g%d", i), string(randSeq(r, 500, "ACGT"))}
	}
	lib := newLibrary(t, m, data)

	// a chimera of three genomes
	s := append([]byte{}, lib.Genome(0).Seq[:300]...)
	s = append(s, lib.Genome(1).Seq[100:340]...)
	s = append(s, lib.Genome(2).Seq[:120]...)
	q, _ := genome.New("chimera", s)

	threads := Threads
	defer func() { Threads = threads }()

	Threads = 1
	r1, err := lib.FindRelated(q, 2*m, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	Threads = 8
	r8, err := lib.FindRelated(q, 2*m, false, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(r1) != len(r8) {
		t.Fatalf("FindRelated error: results differ with different threads: %d, %d", len(r1), len(r8))
	}
	for i := range r1 {
		if *r1[i] != *r8[i] {
			t.Errorf("FindRelated error: results differ with different threads: %+v, %+v", *r1[i], *r8[i])
		}
		if r1[i].Hits > r1[i].Windows {
			t.Errorf("FindRelated error: hits (%d) > windows (%d)", r1[i].Hits, r1[i].Windows)
		}
		if i > 0 && r1[i].Percent > r1[i-1].Percent {
			t.Errorf("FindRelated error: results not sorted by percentage")
		}
	}
	if len(r1) < 3 || r1[0].GenomeIdx != 0 {
		t.Errorf("FindRelated error: g0 should be the most related genome: %+v", *r1[0])
	}
}
