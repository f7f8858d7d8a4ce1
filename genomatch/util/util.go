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

package util

import "github.com/twotwotwo/sorts/sortutil"

// NumBases is the size of the alphabet: A, C, G, T and N.
const NumBases = 5

// InvalidBase is returned by BaseCode for bytes outside the alphabet.
const InvalidBase uint8 = 255

var base2code [256]uint8

// Code2Base maps a base code back to the upper-case base.
var Code2Base = [NumBases]byte{'A', 'C', 'G', 'T', 'N'}

func init() {
	for i := range base2code {
		base2code[i] = InvalidBase
	}
	for c, b := range Code2Base {
		base2code[b] = uint8(c)
		base2code[b+32] = uint8(c) // lower case
	}
}

// BaseCode returns the code (0-4) of a base, case ignored,
// or InvalidBase.
func BaseCode(b byte) uint8 {
	return base2code[b]
}

// IsValidBase tells whether b is one of ACGTN, case ignored.
func IsValidBase(b byte) bool {
	return base2code[b] != InvalidBase
}

// InvalidBaseAt returns the position of the first byte outside ACGTN,
// or -1 if all bytes are valid.
func InvalidBaseAt(s []byte) int {
	for i, b := range s {
		if base2code[b] == InvalidBase {
			return i
		}
	}
	return -1
}

// ToUpper converts lower-case bases in place.
func ToUpper(s []byte) {
	for i, b := range s {
		if b >= 'a' && b <= 'z' {
			s[i] = b - 32
		}
	}
}

// an occurrence is stored as an uint64:
//
//	genome idx: 28 bits
//	pos:        36 bits (0-based position)
const (
	OccurrencePosBits = 36
	MaxGenomes        = 1 << (64 - OccurrencePosBits)
	MaxPosition       = 1<<OccurrencePosBits - 1

	posMask = 1<<OccurrencePosBits - 1
)

// Occurrence packs a genome index and a position.
func Occurrence(idx int, pos int) uint64 {
	return uint64(idx)<<OccurrencePosBits | uint64(pos)&posMask
}

// OccurrenceIdx returns the genome index of an occurrence.
func OccurrenceIdx(v uint64) int {
	return int(v >> OccurrencePosBits)
}

// OccurrencePos returns the position of an occurrence.
func OccurrencePos(v uint64) int {
	return int(v & posMask)
}

// UniqUint64s removes duplicates in a uint64 list.
// The list is sorted in place, so occurrences end up ordered
// by genome index and then position.
func UniqUint64s(list *[]uint64) {
	if len(*list) == 0 || len(*list) == 1 {
		return
	}

	sortutil.Uint64s(*list)

	var i, j int
	var p, v uint64
	var flag bool
	p = (*list)[0]
	for i = 1; i < len(*list); i++ {
		v = (*list)[i]
		if v == p {
			if !flag {
				j = i // mark insertion position
				flag = true
			}
			continue
		}

		if flag { // need to insert to previous position
			(*list)[j] = v
			j++
		}
		p = v
	}
	if j > 0 {
		*list = (*list)[:j]
	}
}
