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


package internal

import (
	"math"
	"testing"
)

// Every affinity row must sum to one
func checkRowSums(t *testing.T, a *Affinity) {
	t.Helper()
	for i:=0; i<a.NumRows; i++ {
		sum:=float32(0)
		for j:=a.RowStart[i]; j<a.RowStart[i+1]; j++ { sum+=a.Weights[j] }
		if math.Abs(float64(sum-1))>1e-6 { t.Errorf("row %d sums to %f; want 1", i, sum) }
	}
}

func TestAffinityRowSums(t *testing.T) {
	floating:=makeGrid(10, 10, 1, nil)
	target  :=makeGrid(12, 12, 0.8, nil)

	for _, symmetric:=range []bool{false, true} {
		filter:=NewCorrespondenceFilter(target, 5, symmetric, 1)
		affinity:=knnAffinity(floating.Features, filter.targetTree, target.NumVertices(), 5, 1)
		checkRowSums(t, affinity)

		if symmetric {
			floatingFilter:=NewCorrespondenceFilter(floating, 5, false, 1)
			backward:=knnAffinity(target.Features, floatingFilter.targetTree, floating.NumVertices(), 5, 1)
			fused, err:=fuseAffinities(affinity, backward)
			if err!=nil { t.Fatalf("fusing: %s", err.Error()) }
			checkRowSums(t, fused)
		}
	}
}

func TestFuseAffinitiesShapeMismatch(t *testing.T) {
	a:=&Affinity{NumRows: 3, NumCols: 4, RowStart: make([]int32, 4)}
	b:=&Affinity{NumRows: 3, NumCols: 4, RowStart: make([]int32, 4)}
	if _, err:=fuseAffinities(a, b); err==nil {
		t.Errorf("fusing non-transposed shapes succeeded; want error")
	}
}

func TestCorrespondencesIdentity(t *testing.T) {
	m:=makeCube(0, 0, 0)
	corresponding     :=make([]float32, m.NumVertices()*NumFeatures)
	correspondingFlags:=make([]float32, m.NumVertices())

	if err:=ComputeCorrespondences(m, m, false, 3, 1, corresponding, correspondingFlags); err!=nil {
		t.Fatalf("computing correspondences: %s", err.Error())
	}
	for i:=0; i<m.NumVertices(); i++ {
		if correspondingFlags[i]!=1 { t.Errorf("flag %d is %f; want 1", i, correspondingFlags[i]) }
		p, c:=m.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
		for d:=0; d<3; d++ {
			if math.Abs(float64(p[d]-c[d]))>1e-5 {
				t.Errorf("vertex %d dim %d: correspondence %f; want %f", i, d, c[d], p[d])
			}
		}
	}
}

// Flags must come out binary even though the affinity blends target flags
func TestCorrespondenceFlagsBinary(t *testing.T) {
	floating:=makeGrid(8, 8, 1, nil)
	target  :=makeGrid(8, 8, 1, nil)
	for i:=0; i<target.NumVertices(); i+=3 { target.Flags[i]=0 }

	corresponding     :=make([]float32, floating.NumVertices()*NumFeatures)
	correspondingFlags:=make([]float32, floating.NumVertices())
	if err:=ComputeCorrespondences(floating, target, true, 5, 1, corresponding, correspondingFlags); err!=nil {
		t.Fatalf("computing correspondences: %s", err.Error())
	}
	for i, f:=range correspondingFlags {
		if f!=0 && f!=1 { t.Errorf("flag %d is %f, not binary", i, f) }
	}
}

// A target vertex flagged invalid must invalidate the floating vertex sitting on it
func TestCorrespondencesPartialFlags(t *testing.T) {
	floating:=makeCube(0, 0, 0)
	target  :=makeCube(0, 0, 0)
	target.Flags[7]=0

	corresponding     :=make([]float32, floating.NumVertices()*NumFeatures)
	correspondingFlags:=make([]float32, floating.NumVertices())
	if err:=ComputeCorrespondences(floating, target, true, 3, 1, corresponding, correspondingFlags); err!=nil {
		t.Fatalf("computing correspondences: %s", err.Error())
	}
	if correspondingFlags[7]!=0 {
		t.Errorf("corresponding flag of vertex 7 is %f; want 0", correspondingFlags[7])
	}
}

func TestCorrespondencesAllInvalid(t *testing.T) {
	floating:=makeCube(0, 0, 0)
	target  :=makeCube(0, 0, 0)
	for i:=range target.Flags { target.Flags[i]=0 }

	corresponding     :=make([]float32, floating.NumVertices()*NumFeatures)
	correspondingFlags:=make([]float32, floating.NumVertices())
	err:=ComputeCorrespondences(floating, target, false, 3, 1, corresponding, correspondingFlags)
	if err!=ErrEmptyCorrespondence {
		t.Errorf("got error %v; want ErrEmptyCorrespondence", err)
	}
}
