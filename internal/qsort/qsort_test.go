// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package qsort

import (
	"math/rand"
	"sort"
	"testing"
)

func TestQSelectFloat32(t *testing.T) {
	rng:=rand.New(rand.NewSource(33))
	for _, n:=range []int{1, 2, 5, 100, 1001} {
		data:=make([]float32, n)
		for i:=range data { data[i]=rng.Float32() }
		sorted:=make([]float32, n)
		copy(sorted, data)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i]<sorted[j] })

		for _, k:=range []int{1, (n>>1)+1, n} {
			scratch:=make([]float32, n)
			copy(scratch, data)
			if got:=QSelectFloat32(scratch, k); got!=sorted[k-1] {
				t.Errorf("n=%d k=%d: selected %f; want %f", n, k, got, sorted[k-1])
			}
		}
	}
}

func TestQSelectMedianFloat32(t *testing.T) {
	data:=[]float32{9, 1, 8, 2, 7, 3, 6, 4, 5}
	if got:=QSelectMedianFloat32(data); got!=5 {
		t.Errorf("median is %f; want 5", got)
	}
}
