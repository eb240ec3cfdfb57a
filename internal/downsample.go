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
	"container/heap"
	"math"
	"github.com/pkg/errors"
)

// A symmetric 4x4 error quadric in compact form:
// [ q0 q1 q2 q3 ]
// [ q1 q4 q5 q6 ]
// [ q2 q5 q7 q8 ]
// [ q3 q6 q8 q9 ]
type quadric [10]float64

func (q *quadric) add(o *quadric) {
	for i:=range q { q[i]+=o[i] }
}

// Builds the quadric of the plane through the face with unit normal (a,b,c) and offset d
func planeQuadric(a, b, c, d float64) quadric {
	return quadric{a*a, a*b, a*c, a*d, b*b, b*c, b*d, c*c, c*d, d*d}
}

// Evaluates the quadric error v^T Q v at position (x,y,z)
func (q *quadric) eval(x, y, z float64) float64 {
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z + q[9]
}

// A candidate half-edge collapse of vertex from into vertex into. Entries go stale
// when either endpoint's version moves on; stale entries are skipped on pop
type collapse struct {
	cost         float64
	from, into   int32
	vFrom, vInto int32
}

type collapseHeap []collapse

func (h collapseHeap) Len() int            { return len(h) }
func (h collapseHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x interface{}) { *h=append(*h, x.(collapse)) }
func (h collapseHeap) Less(i, j int) bool {
	if h[i].cost!=h[j].cost { return h[i].cost<h[j].cost }
	if h[i].from!=h[j].from { return h[i].from<h[j].from }
	return h[i].into<h[j].into
}
func (h *collapseHeap) Pop() interface{} {
	old:=*h
	n:=len(old)
	x:=old[n-1]
	*h=old[:n-1]
	return x
}

// Downsamples a mesh by greedy quadric-error half-edge collapse until only
// round(numVertices*(1-ratio)) vertices remain, so ratio is the fraction of
// vertices to remove. Surviving vertices keep their original features; normals
// are recomputed from the decimated faces. Edges whose endpoints carry different
// flags are never collapsed, preserving the outline of flagged-out regions.
// Returns the downsampled mesh and the mapping from its vertex indices to the
// input mesh's vertex indices
func DownsampleMesh(m *Mesh, ratio float32) (*Mesh, []int32, error) {
	if ratio<0 || ratio>1 { return nil, nil, errors.Errorf("downsample ratio %f outside [0,1]", ratio) }
	numVertices:=m.NumVertices()
	targetCount:=int(math.Round(float64(numVertices)*float64(1-ratio)))
	if targetCount<3 { targetCount=3 }

	d:=newDecimator(m)
	d.collapseTo(targetCount)
	return d.compact(m)
}

// Working state of one decimation run
type decimator struct {
	m          *Mesh
	quadrics   []quadric
	versions   []int32
	vertAlive  []bool
	faceAlive  []bool
	faces      []int32   // mutable copy of m.Faces, collapsed in place
	faceLists  [][]int32 // per vertex, incident face ids (may contain dead faces)
	aliveCount int
	heap       collapseHeap
}

func newDecimator(m *Mesh) *decimator {
	numVertices, numFaces:=m.NumVertices(), m.NumFaces()
	d:=&decimator{
		m:          m,
		quadrics:   make([]quadric, numVertices),
		versions:   make([]int32,   numVertices),
		vertAlive:  make([]bool,    numVertices),
		faceAlive:  make([]bool,    numFaces),
		faces:      make([]int32,   len(m.Faces)),
		faceLists:  make([][]int32, numVertices),
		aliveCount: numVertices,
	}
	copy(d.faces, m.Faces)
	for i:=range d.vertAlive { d.vertAlive[i]=true }

	for f:=0; f<numFaces; f++ {
		d.faceAlive[f]=true
		a,b,c:=d.faces[3*f], d.faces[3*f+1], d.faces[3*f+2]
		d.faceLists[a]=append(d.faceLists[a], int32(f))
		d.faceLists[b]=append(d.faceLists[b], int32(f))
		d.faceLists[c]=append(d.faceLists[c], int32(f))

		pa, pb, pc:=m.Pos(int(a)), m.Pos(int(b)), m.Pos(int(c))
		nx:=float64(pb[1]-pa[1])*float64(pc[2]-pa[2]) - float64(pb[2]-pa[2])*float64(pc[1]-pa[1])
		ny:=float64(pb[2]-pa[2])*float64(pc[0]-pa[0]) - float64(pb[0]-pa[0])*float64(pc[2]-pa[2])
		nz:=float64(pb[0]-pa[0])*float64(pc[1]-pa[1]) - float64(pb[1]-pa[1])*float64(pc[0]-pa[0])
		norm:=math.Sqrt(nx*nx+ny*ny+nz*nz)
		if norm==0 { continue } // degenerate face contributes no plane
		nx, ny, nz = nx/norm, ny/norm, nz/norm
		off:=-(nx*float64(pa[0])+ny*float64(pa[1])+nz*float64(pa[2]))
		pq:=planeQuadric(nx, ny, nz, off)
		d.quadrics[a].add(&pq)
		d.quadrics[b].add(&pq)
		d.quadrics[c].add(&pq)
	}

	// seed the heap with both directions of every unique edge
	seen:=make(map[int64]bool)
	for f:=0; f<numFaces; f++ {
		for e:=0; e<3; e++ {
			a, b:=d.faces[3*f+e], d.faces[3*f+(e+1)%3]
			if a>b { a, b = b, a }
			key:=int64(a)<<32 | int64(b)
			if seen[key] { continue }
			seen[key]=true
			d.pushEdge(a, b)
		}
	}
	heap.Init(&d.heap)
	return d
}

// Queues both collapse directions of edge (a,b), unless it crosses a flag boundary
func (d *decimator) pushEdge(a, b int32) {
	if d.m.Flags[a]!=d.m.Flags[b] { return }
	d.pushCollapse(a, b)
	d.pushCollapse(b, a)
}

func (d *decimator) pushCollapse(from, into int32) {
	var q quadric = d.quadrics[from]
	q.add(&d.quadrics[into])
	p:=d.m.Pos(int(into))
	heap.Push(&d.heap, collapse{
		cost:  q.eval(float64(p[0]), float64(p[1]), float64(p[2])),
		from:  from,
		into:  into,
		vFrom: d.versions[from],
		vInto: d.versions[into],
	})
}

// Collects the alive neighbor vertices of v from its incident faces
func (d *decimator) neighbors(v int32, dest []int32) []int32 {
	dest=dest[:0]
	for _, f:=range d.faceLists[v] {
		if !d.faceAlive[f] { continue }
		for e:=0; e<3; e++ {
			n:=d.faces[3*f+int32(e)]
			if n==v { continue }
			found:=false
			for _, x:=range dest {
				if x==n { found=true; break }
			}
			if !found { dest=append(dest, n) }
		}
	}
	return dest
}

// Pops valid collapses off the heap until the alive count reaches targetCount
// or no collapsible edge remains
func (d *decimator) collapseTo(targetCount int) {
	var nbFrom, nbInto []int32
	for d.aliveCount>targetCount && d.heap.Len()>0 {
		c:=heap.Pop(&d.heap).(collapse)
		if !d.vertAlive[c.from] || !d.vertAlive[c.into] { continue }
		if c.vFrom!=d.versions[c.from] || c.vInto!=d.versions[c.into] { continue }

		// link condition: collapsing is only safe when the endpoints share at most
		// two neighbors (the vertices opposite the edge), else the surface pinches
		nbFrom=d.neighbors(c.from, nbFrom)
		nbInto=d.neighbors(c.into, nbInto)
		common, adjacent:=0, false
		for _, x:=range nbFrom {
			if x==c.into { adjacent=true }
			for _, y:=range nbInto {
				if x==y { common++; break }
			}
		}
		if !adjacent || common>2 { continue }

		d.collapseEdge(c.from, c.into)

		// re-queue the surviving vertex's edges with its merged quadric
		nbInto=d.neighbors(c.into, nbInto)
		for _, n:=range nbInto { d.pushEdge(c.into, n) }
	}
}

// Removes vertex from by merging it into vertex into: shared faces die, the
// remaining faces of from are rewired, and the quadrics are summed
func (d *decimator) collapseEdge(from, into int32) {
	for _, f:=range d.faceLists[from] {
		if !d.faceAlive[f] { continue }
		containsInto:=false
		for e:=0; e<3; e++ {
			if d.faces[3*f+int32(e)]==into { containsInto=true; break }
		}
		if containsInto {
			d.faceAlive[f]=false
			continue
		}
		for e:=0; e<3; e++ {
			if d.faces[3*f+int32(e)]==from { d.faces[3*f+int32(e)]=into }
		}
		d.faceLists[into]=append(d.faceLists[into], f)
	}
	d.faceLists[from]=nil
	d.vertAlive[from]=false
	d.quadrics[into].add(&d.quadrics[from])
	d.versions[from]++
	d.versions[into]++
	d.aliveCount--
}

// Compacts the surviving vertices and faces into a fresh mesh, recomputing normals,
// and emits the map from new vertex indices to original ones
func (d *decimator) compact(m *Mesh) (*Mesh, []int32, error) {
	remap:=make([]int32, m.NumVertices())
	originalIndices:=make([]int32, 0, d.aliveCount)
	for i:=range remap { remap[i]=-1 }
	for i:=0; i<m.NumVertices(); i++ {
		if !d.vertAlive[i] { continue }
		remap[i]=int32(len(originalIndices))
		originalIndices=append(originalIndices, int32(i))
	}

	out:=&Mesh{
		Features: make([]float32, len(originalIndices)*NumFeatures),
		Flags:    make([]float32, len(originalIndices)),
	}
	for newIdx, origIdx:=range originalIndices {
		copy(out.Features[newIdx*NumFeatures:(newIdx+1)*NumFeatures],
			m.Features[int(origIdx)*NumFeatures:(int(origIdx)+1)*NumFeatures])
		out.Flags[newIdx]=m.Flags[origIdx]
	}

	for f:=0; f<len(d.faces)/3; f++ {
		if !d.faceAlive[f] { continue }
		a, b, c:=remap[d.faces[3*f]], remap[d.faces[3*f+1]], remap[d.faces[3*f+2]]
		if a==b || b==c || a==c { continue }
		out.Faces=append(out.Faces, a, b, c)
	}

	out.RecomputeNormals()
	if err:=out.Validate(); err!=nil { return nil, nil, errors.Wrap(err, "downsampled mesh") }
	return out, originalIndices, nil
}
