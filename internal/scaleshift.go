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

// Transfers deformed features from a coarse pyramid level onto the next, finer
// level. Both index lists reference vertices of the finest-resolution mesh, and
// fineFeatures holds the finer level's features before the transfer, i.e. in the
// undeformed original frame.
//
// A fine vertex whose original index appears in the coarse list takes that coarse
// feature verbatim. Any other fine vertex keeps its own position, offset by the
// displacement of the nearest matched vertex, and takes that vertex's deformed
// normal; distances are measured between undeformed positions. Distinct vertices
// thus stay distinct after the transfer, and no vertex keeps an undeformed normal.
// No smoothing happens here; the finer level's iterations take care of that
func ScaleShiftMesh(coarseFeatures []float32, coarseIndices []int32, fineFeatures []float32, fineIndices []int32) error {
	numCoarse:=len(coarseFeatures)/NumFeatures
	numFine  :=len(fineFeatures)/NumFeatures
	if len(coarseIndices)!=numCoarse {
		return errors.Errorf("have %d coarse indices for %d coarse features", len(coarseIndices), numCoarse)
	}
	if len(fineIndices)!=numFine {
		return errors.Errorf("have %d fine indices for %d fine features", len(fineIndices), numFine)
	}

	coarseRow:=make(map[int32]int32, numCoarse)
	for i, orig:=range coarseIndices { coarseRow[orig]=int32(i) }

	// locate the matched fine vertices and their undeformed positions; those
	// doubly define the coarse vertices' undeformed positions
	matchedPositions:=make([]float32, 0, numCoarse*3)
	matchedRows     :=make([]int32,   0, numCoarse)
	unmatched       :=make([]int32,   0)
	for j:=0; j<numFine; j++ {
		if i, ok:=coarseRow[fineIndices[j]]; ok {
			matchedPositions=append(matchedPositions, fineFeatures[j*NumFeatures:j*NumFeatures+3]...)
			matchedRows=append(matchedRows, i)
		} else {
			unmatched=append(unmatched, int32(j))
		}
	}
	if len(matchedRows)==0 {
		return errors.New("no coarse index matches any fine index")
	}

	if len(unmatched)>0 {
		tree:=kdtree.NewTree3(matchedPositions)
		indices:=make([]int32,   1)
		distSqs:=make([]float32, 1)
		for _, j:=range unmatched {
			row:=fineFeatures[int(j)*NumFeatures : (int(j)+1)*NumFeatures]
			q:=[3]float32{row[0], row[1], row[2]}
			tree.KNearest(q, 1, indices, distSqs)
			i:=matchedRows[indices[0]]
			coarse :=coarseFeatures[int(i)*NumFeatures : (int(i)+1)*NumFeatures]
			origPos:=matchedPositions[3*int(indices[0]) : 3*int(indices[0])+3]
			for d:=0; d<3; d++ {
				row[d]+=coarse[d]-origPos[d]
			}
			copy(row[3:], coarse[3:])
		}
	}

	// overwrite the matched rows last, so the fallback pass above still sees
	// their undeformed positions
	for j:=0; j<numFine; j++ {
		if i, ok:=coarseRow[fineIndices[j]]; ok {
			copy(fineFeatures[j*NumFeatures:(j+1)*NumFeatures],
				coarseFeatures[int(i)*NumFeatures:(int(i)+1)*NumFeatures])
		}
	}
	return nil
}
