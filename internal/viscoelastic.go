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
	"github.com/mlnoga/surfreg/internal/kdtree"
)

// Evolves a per-vertex displacement field across the iterations of one resolution
// level. The force field driving the deformation is Gaussian-smoothed (viscous
// passes), accumulated into the displacement field, which is smoothed again
// (elastic passes) and applied on top of the level's fixed reference positions.
//
// Smoothing neighborhoods live in the reference frame: positions there never move,
// so the neighbor sets and their Gaussian kernel weights are computed once at
// level start and reused by every pass of every iteration
type ViscoElasticTransformer struct {
	SmoothingNeighbours int
	Sigma               float32
	MaxThreads          int

	refPositions []float32 // numVertices x 3, fixed for the level
	displacement []float32 // numVertices x 3, cumulative
	neighbors    []int32   // numVertices x k, self included
	kernel       []float32 // numVertices x k, Gaussian weight per neighbor
	numNeighbors int
	force        []float32 // scratch, numVertices x 3
	scratch      []float32 // scratch, numVertices x 3
	combined     []float32 // scratch, numVertices
}

// Creates a transformer anchored at the floating mesh's current positions, which
// become the level's reference frame. The displacement field starts at zero
func NewViscoElasticTransformer(floating *Mesh, smoothingNeighbours int, sigma float32, maxThreads int) *ViscoElasticTransformer {
	numVertices:=floating.NumVertices()
	k:=smoothingNeighbours
	if k>numVertices { k=numVertices }

	t:=&ViscoElasticTransformer{
		SmoothingNeighbours: smoothingNeighbours,
		Sigma:               sigma,
		MaxThreads:          maxThreads,
		refPositions:        floating.Positions(nil),
		displacement:        make([]float32, numVertices*3),
		neighbors:           make([]int32,   numVertices*k),
		kernel:              make([]float32, numVertices*k),
		numNeighbors:        k,
		force:               make([]float32, numVertices*3),
		scratch:             make([]float32, numVertices*3),
		combined:            make([]float32, numVertices),
	}

	tree:=kdtree.NewTree3(t.refPositions)
	factor:=-0.5/float64(sigma*sigma)
	parallelOver(numVertices, maxThreads, func(lo, hi int) {
		indices:=make([]int32,   k)
		distSqs:=make([]float32, k)
		for i:=lo; i<hi; i++ {
			q:=[3]float32{t.refPositions[3*i], t.refPositions[3*i+1], t.refPositions[3*i+2]}
			found:=tree.KNearest(q, k, indices, distSqs)
			for j:=0; j<found; j++ {
				t.neighbors[i*k+j]=indices[j]
				t.kernel   [i*k+j]=float32(math.Exp(factor*float64(distSqs[j])))
			}
			for j:=found; j<k; j++ { // short meshes: pad with self at zero weight
				t.neighbors[i*k+j]=int32(i)
				t.kernel   [i*k+j]=0
			}
		}
	})
	return t
}

// One Gaussian smoothing pass over a vector field: each vertex's vector becomes the
// kernel- and weight-averaged vector of its reference-frame neighbors. A vertex whose
// neighborhood carries zero total weight keeps its vector unchanged
func (t *ViscoElasticTransformer) smoothField(src, dst, weights []float32) {
	k:=t.numNeighbors
	parallelOver(len(src)/3, t.MaxThreads, func(lo, hi int) {
		for i:=lo; i<hi; i++ {
			var sx, sy, sz, sumWeights float32
			for j:=i*k; j<(i+1)*k; j++ {
				n:=t.neighbors[j]
				w:=t.kernel[j]*weights[n]
				sx+=w*src[3*n  ]
				sy+=w*src[3*n+1]
				sz+=w*src[3*n+2]
				sumWeights+=w
			}
			if sumWeights==0 {
				dst[3*i], dst[3*i+1], dst[3*i+2] = src[3*i], src[3*i+1], src[3*i+2]
			} else {
				dst[3*i], dst[3*i+1], dst[3*i+2] = sx/sumWeights, sy/sumWeights, sz/sumWeights
			}
		}
	})
}

// Updates the displacement field from the current correspondences and applies it.
// The force field is the pull of each vertex toward its correspondence, weighted by
// inlier weight times floating flag; numViscous passes smooth the force, numElastic
// passes smooth the accumulated displacement. Floating positions become reference
// plus displacement, and normals are recomputed from the faces
func (t *ViscoElasticTransformer) Update(floating *Mesh, corresponding, inlierWeights []float32, numViscous, numElastic int) {
	numVertices:=floating.NumVertices()

	for i:=0; i<numVertices; i++ {
		t.combined[i]=inlierWeights[i]*floating.Flags[i]
		p, c:=floating.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
		t.force[3*i  ]=c[0]-p[0]
		t.force[3*i+1]=c[1]-p[1]
		t.force[3*i+2]=c[2]-p[2]
	}

	// viscous passes regulate the per-iteration force field
	for pass:=0; pass<numViscous; pass++ {
		t.smoothField(t.force, t.scratch, t.combined)
		t.force, t.scratch = t.scratch, t.force
	}

	// elastic passes regulate the accumulated displacement
	for i:=range t.displacement { t.displacement[i]+=t.force[i] }
	for pass:=0; pass<numElastic; pass++ {
		t.smoothField(t.displacement, t.scratch, t.combined)
		t.displacement, t.scratch = t.scratch, t.displacement
	}

	for i:=0; i<numVertices; i++ {
		p:=floating.Pos(i)
		p[0]=t.refPositions[3*i  ]+t.displacement[3*i  ]
		p[1]=t.refPositions[3*i+1]+t.displacement[3*i+1]
		p[2]=t.refPositions[3*i+2]+t.displacement[3*i+2]
	}
	floating.RecomputeNormals()
}

// Applies one standalone viscoelastic update with a fresh zero displacement field,
// anchored at the mesh's current positions. Iterative loops keep a transformer
// instead, so the displacement field persists across iterations
func ComputeNonrigidTransformation(floating *Mesh, corresponding, inlierWeights []float32,
	smoothingNeighbours int, sigma float32, numViscous, numElastic, maxThreads int) error {
	if err:=floating.Validate(); err!=nil { return err }
	t:=NewViscoElasticTransformer(floating, smoothingNeighbours, sigma, maxThreads)
	t.Update(floating, corresponding, inlierWeights, numViscous, numElastic)
	return nil
}
