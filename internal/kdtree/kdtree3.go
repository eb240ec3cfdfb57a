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


package kdtree

import (
	"sort"
)

// A 3-dimensional point with the index of the vertex it came from
type Point3 struct {
	P     [3]float32
	Index int32
}

// A pointerless k-d tree with k=3 dimensions: the median element of each
// subslice is the splitting node, the split axis cycles with depth, and each
// point carries its source vertex index as payload
type Tree3 []Point3

// Creates a tree over the given flat Nx3 coordinate buffer, with payload indices 0..N-1
func NewTree3(coords []float32) Tree3 {
	t:=make(Tree3, len(coords)/3)
	for i:=range t {
		t[i]=Point3{P: [3]float32{coords[3*i], coords[3*i+1], coords[3*i+2]}, Index: int32(i)}
	}
	t.make(0)
	return t
}

// Builds the tree in place by recursively sorting on the median of the split axis
func (t Tree3) make(axis int) {
	if len(t)<=LeafSize { return }
	sort.Slice(t, func(i, j int) bool {
		if t[i].P[axis]!=t[j].P[axis] { return t[i].P[axis]<t[j].P[axis] }
		return t[i].Index<t[j].Index
	})
	next:=(axis+1)%3
	t[:len(t)/2].make(next)
	t[len(t)/2+1:].make(next)
}

// Finds the k nearest tree points to the query point q, in ascending order of
// squared euclidean distance with ties broken by smaller index first.
// Results are appended into the provided index and squared distance buffers,
// which must have capacity k; returns the number of neighbors found
func (t Tree3) KNearest(q [3]float32, k int, indices []int32, distSqs []float32) int {
	kp:=newKeeper(k, indices, distSqs)
	t.knn(q, 0, kp)
	return len(kp.indices)
}

func (t Tree3) knn(q [3]float32, axis int, kp *keeper) {
	if len(t)<=LeafSize {
		for i:=range t {
			kp.insert(t[i].Index, dist3Sq(q, t[i].P))
		}
		return
	}
	mid:=len(t)/2
	kp.insert(t[mid].Index, dist3Sq(q, t[mid].P))

	next:=(axis+1)%3
	distToPlane:=q[axis]-t[mid].P[axis]
	if q[axis]<=t[mid].P[axis] {
		t[:mid].knn(q, next, kp)
		if kp.admits(distToPlane*distToPlane) { t[mid+1:].knn(q, next, kp) }
	} else {
		t[mid+1:].knn(q, next, kp)
		if kp.admits(distToPlane*distToPlane) { t[:mid].knn(q, next, kp) }
	}
}

// Finds all tree points within radius r of the query point q, appending their
// indices and squared distances to the given buffers and returning the results
func (t Tree3) WithinRadius(q [3]float32, r float32, indices []int32, distSqs []float32) ([]int32, []float32) {
	return t.radius(q, r*r, 0, indices, distSqs)
}

func (t Tree3) radius(q [3]float32, rSq float32, axis int, indices []int32, distSqs []float32) ([]int32, []float32) {
	if len(t)<=LeafSize {
		for i:=range t {
			if dsq:=dist3Sq(q, t[i].P); dsq<=rSq {
				indices=append(indices, t[i].Index)
				distSqs=append(distSqs, dsq)
			}
		}
		return indices, distSqs
	}
	mid:=len(t)/2
	if dsq:=dist3Sq(q, t[mid].P); dsq<=rSq {
		indices=append(indices, t[mid].Index)
		distSqs=append(distSqs, dsq)
	}
	next:=(axis+1)%3
	distToPlane:=q[axis]-t[mid].P[axis]
	if q[axis]<=t[mid].P[axis] || distToPlane*distToPlane<=rSq {
		indices, distSqs=t[:mid].radius(q, rSq, next, indices, distSqs)
	}
	if q[axis]>t[mid].P[axis] || distToPlane*distToPlane<=rSq {
		indices, distSqs=t[mid+1:].radius(q, rSq, next, indices, distSqs)
	}
	return indices, distSqs
}

func dist3Sq(a, b [3]float32) float32 {
	dx,dy,dz:=a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx+dy*dy+dz*dz
}
