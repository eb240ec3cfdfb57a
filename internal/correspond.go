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
	"github.com/pkg/errors"
	"github.com/mlnoga/surfreg/internal/kdtree"
)

// Floor for squared feature distances when computing inverse-distance weights
const affinityEps = 1e-12

// A correspondence drawing more than this share of its mass from flagged-valid
// neighbors is flagged valid itself
const flagRoundingLimit = 0.9

// A sparse row-stochastic affinity matrix in CSR form. Row i holds the weights
// mapping target rows onto floating row i; each row sums to one
type Affinity struct {
	NumRows  int
	NumCols  int
	RowStart []int32
	Cols     []int32
	Weights  []float32
}

// Normalizes each row to sum to one. Rows with zero sum are left untouched
func (a *Affinity) Normalize() {
	for i:=0; i<a.NumRows; i++ {
		sum:=float32(0)
		for j:=a.RowStart[i]; j<a.RowStart[i+1]; j++ { sum+=a.Weights[j] }
		if sum==0 { continue }
		for j:=a.RowStart[i]; j<a.RowStart[i+1]; j++ { a.Weights[j]/=sum }
	}
}

// Multiplies the affinity with a dense column-block matrix of the given stride,
// e.g. target features (stride 6) or flags (stride 1), into dest
func (a *Affinity) Mul(src []float32, stride int, dest []float32) {
	for i:=0; i<a.NumRows; i++ {
		row:=dest[i*stride : (i+1)*stride]
		for d:=0; d<stride; d++ { row[d]=0 }
		for j:=a.RowStart[i]; j<a.RowStart[i+1]; j++ {
			c, w:=int(a.Cols[j]), a.Weights[j]
			for d:=0; d<stride; d++ {
				row[d]+=w*src[c*stride+d]
			}
		}
	}
}

// Computes the k-NN affinity from each query feature row to the index over the
// target features. Weights are inverse squared distances with an epsilon floor,
// normalized per row. Runs queries in parallel over row chunks
func knnAffinity(queries []float32, tree kdtree.Tree6, numCols, k, maxThreads int) *Affinity {
	numRows:=len(queries)/NumFeatures
	if k>numCols { k=numCols }

	a:=&Affinity{
		NumRows:  numRows,
		NumCols:  numCols,
		RowStart: make([]int32,   numRows+1),
		Cols:     make([]int32,   numRows*k),
		Weights:  make([]float32, numRows*k),
	}
	for i:=0; i<=numRows; i++ { a.RowStart[i]=int32(i*k) }

	parallelOver(numRows, maxThreads, func(lo, hi int) {
		indices:=make([]int32,   k)
		distSqs:=make([]float32, k)
		var q [6]float32
		for i:=lo; i<hi; i++ {
			copy(q[:], queries[i*NumFeatures:(i+1)*NumFeatures])
			found:=tree.KNearest(q, k, indices, distSqs)
			for j:=0; j<found; j++ {
				a.Cols   [i*k+j]=indices[j]
				a.Weights[i*k+j]=1.0/(distSqs[j]+affinityEps)
			}
		}
	})

	a.Normalize()
	return a
}

// Fuses a forward affinity with the transpose of a backward affinity by averaging,
// then re-normalizes rows. This is the push-pull step: target points that are no
// floating point's neighbor still pull their nearest floating point toward them
func fuseAffinities(fw, bw *Affinity) (*Affinity, error) {
	if fw.NumRows!=bw.NumCols || fw.NumCols!=bw.NumRows {
		return nil, errors.Errorf("affinity shapes %dx%d and %dx%d are not transposes",
			fw.NumRows, fw.NumCols, bw.NumRows, bw.NumCols)
	}

	// count entries per fused row: forward row plus backward column contributions
	counts:=make([]int32, fw.NumRows+1)
	for i:=0; i<fw.NumRows; i++ {
		counts[i+1]=fw.RowStart[i+1]-fw.RowStart[i]
	}
	for j:=0; j<len(bw.Cols); j++ {
		counts[bw.Cols[j]+1]++
	}
	for i:=0; i<fw.NumRows; i++ { counts[i+1]+=counts[i] }

	fused:=&Affinity{
		NumRows:  fw.NumRows,
		NumCols:  fw.NumCols,
		RowStart: counts,
		Cols:     make([]int32,   counts[fw.NumRows]),
		Weights:  make([]float32, counts[fw.NumRows]),
	}

	fill:=make([]int32, fw.NumRows)
	for i:=0; i<fw.NumRows; i++ {
		for j:=fw.RowStart[i]; j<fw.RowStart[i+1]; j++ {
			at:=fused.RowStart[i]+fill[i]
			fused.Cols[at], fused.Weights[at]=fw.Cols[j], 0.5*fw.Weights[j]
			fill[i]++
		}
	}
	for r:=0; r<bw.NumRows; r++ {
		for j:=bw.RowStart[r]; j<bw.RowStart[r+1]; j++ {
			i:=int(bw.Cols[j])
			at:=fused.RowStart[i]+fill[i]
			fused.Cols[at], fused.Weights[at]=int32(r), 0.5*bw.Weights[j]
			fill[i]++
		}
	}

	// merge duplicate columns within each row so the CSR stays canonical
	fused.compactRows()
	fused.Normalize()
	return fused, nil
}

// Sums duplicate column entries within each row in place
func (a *Affinity) compactRows() {
	out:=int32(0)
	newStart:=make([]int32, a.NumRows+1)
	seen:=make(map[int32]int32, 16)
	for i:=0; i<a.NumRows; i++ {
		newStart[i]=out
		for k:=range seen { delete(seen, k) }
		for j:=a.RowStart[i]; j<a.RowStart[i+1]; j++ {
			c:=a.Cols[j]
			if at,ok:=seen[c]; ok {
				a.Weights[at]+=a.Weights[j]
			} else {
				a.Cols[out], a.Weights[out]=c, a.Weights[j]
				seen[c]=out
				out++
			}
		}
	}
	newStart[a.NumRows]=out
	a.RowStart=newStart
	a.Cols    =a.Cols[:out]
	a.Weights =a.Weights[:out]
}

// A correspondence filter mapping target features onto floating vertices via
// weighted k-NN affinities. The target tree is cached as the target never moves;
// floating-side structures are rebuilt every call as positions move each iteration
type CorrespondenceFilter struct {
	Target        *Mesh
	NumNeighbours int
	Symmetric     bool
	MaxThreads    int
	targetTree    kdtree.Tree6
}

// Creates a correspondence filter over the given target mesh
func NewCorrespondenceFilter(target *Mesh, numNeighbours int, symmetric bool, maxThreads int) *CorrespondenceFilter {
	return &CorrespondenceFilter{
		Target:        target,
		NumNeighbours: numNeighbours,
		Symmetric:     symmetric,
		MaxThreads:    maxThreads,
		targetTree:    kdtree.NewTree6(target.Features),
	}
}

// Computes per-floating-vertex corresponding features and flags. corresponding must
// have room for NumVertices x NumFeatures values, correspondingFlags for NumVertices.
// Returns an error if every correspondence ends up flagged invalid
func (f *CorrespondenceFilter) Update(floating *Mesh, corresponding, correspondingFlags []float32) error {
	numTarget:=f.Target.NumVertices()
	affinity:=knnAffinity(floating.Features, f.targetTree, numTarget, f.NumNeighbours, f.MaxThreads)

	if f.Symmetric {
		floatingTree:=kdtree.NewTree6(floating.Features)
		backward:=knnAffinity(f.Target.Features, floatingTree, floating.NumVertices(), f.NumNeighbours, f.MaxThreads)
		var err error
		affinity, err=fuseAffinities(affinity, backward)
		if err!=nil { return err }
	}

	affinity.Mul(f.Target.Features, NumFeatures, corresponding)
	affinity.Mul(f.Target.Flags,    1,           correspondingFlags)

	// flags are binary: round against the mass drawn from invalid neighbors
	numValid:=0
	for i:=range correspondingFlags {
		if correspondingFlags[i]>flagRoundingLimit {
			correspondingFlags[i]=1.0
			numValid++
		} else {
			correspondingFlags[i]=0.0
		}
	}
	if numValid==0 { return ErrEmptyCorrespondence }
	return nil
}

// Computes correspondences between a floating and a target mesh in one call,
// building all spatial indices from scratch. Mirrors the standalone entry point;
// iterative loops use a CorrespondenceFilter to reuse the target index
func ComputeCorrespondences(floating, target *Mesh, symmetric bool, numNeighbours, maxThreads int,
	corresponding, correspondingFlags []float32) error {
	return NewCorrespondenceFilter(target, numNeighbours, symmetric, maxThreads).
		Update(floating, corresponding, correspondingFlags)
}
