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


// Pointerless k-dimensional trees over point payloads, for k-nearest-neighbor
// and radius queries on vertex positions (3-D) and full features (6-D).
// The median element of each subslice is the splitting node; subslices at or
// below LeafSize are left unsorted and scanned linearly.
package kdtree

// Subslices of this length or shorter are not split further
const LeafSize = 15

// A bounded candidate list for the k nearest neighbors found so far.
// Kept sorted ascending by squared distance; ties prefer the smaller index
type keeper struct {
	indices   []int32
	distSqs   []float32
	k         int
}

func newKeeper(k int, indices []int32, distSqs []float32) *keeper {
	return &keeper{indices: indices[:0], distSqs: distSqs[:0], k: k}
}

// Reports whether a node at squared distance dsq could still improve the candidate list
func (kp *keeper) admits(dsq float32) bool {
	return len(kp.distSqs)<kp.k || dsq<=kp.distSqs[len(kp.distSqs)-1]
}

// Inserts a candidate, keeping the list sorted and bounded to k entries
func (kp *keeper) insert(index int32, dsq float32) {
	if len(kp.distSqs)==kp.k {
		last:=len(kp.distSqs)-1
		if dsq>kp.distSqs[last] { return }
		if dsq==kp.distSqs[last] && index>=kp.indices[last] { return }
	} else {
		kp.distSqs=append(kp.distSqs, 0)
		kp.indices=append(kp.indices, 0)
	}
	i:=len(kp.distSqs)-1
	for i>0 && (kp.distSqs[i-1]>dsq || (kp.distSqs[i-1]==dsq && kp.indices[i-1]>index)) {
		kp.distSqs[i]=kp.distSqs[i-1]
		kp.indices[i]=kp.indices[i-1]
		i--
	}
	kp.distSqs[i]=dsq
	kp.indices[i]=index
}
