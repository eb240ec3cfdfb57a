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

// Zero force fields must leave the mesh untouched no matter how many passes run
func TestViscoElasticIdentity(t *testing.T) {
	m:=makeGrid(6, 6, 1, nil)
	reference:=m.Clone()
	corresponding:=make([]float32, len(m.Features))
	copy(corresponding, m.Features)
	weights:=make([]float32, m.NumVertices())
	for i:=range weights { weights[i]=1 }

	transformer:=NewViscoElasticTransformer(m, 10, 3.0, 1)
	for k:=0; k<5; k++ {
		transformer.Update(m, corresponding, weights, 10, 10)
	}
	if e:=maxError(m, reference); e>1e-6 {
		t.Errorf("max displacement %g after identity updates; want ~0", e)
	}
}

// A uniform pull must move the whole mesh toward the correspondences, and repeated
// updates must converge onto them
func TestViscoElasticConvergence(t *testing.T) {
	m:=makeGrid(8, 8, 1, nil)
	targetPositions:=make([]float32, len(m.Features))
	copy(targetPositions, m.Features)
	for i:=0; i<m.NumVertices(); i++ { // uniform shift by (0.5, 0.2, 0.1)
		targetPositions[i*NumFeatures  ]+=0.5
		targetPositions[i*NumFeatures+1]+=0.2
		targetPositions[i*NumFeatures+2]+=0.1
	}
	weights:=make([]float32, m.NumVertices())
	for i:=range weights { weights[i]=1 }

	transformer:=NewViscoElasticTransformer(m, 10, 3.0, 1)
	for k:=0; k<30; k++ {
		transformer.Update(m, targetPositions, weights, 2, 2)
	}

	for i:=0; i<m.NumVertices(); i++ {
		p:=m.Pos(i)
		c:=targetPositions[i*NumFeatures:i*NumFeatures+3]
		for d:=0; d<3; d++ {
			if math.Abs(float64(p[d]-c[d]))>1e-3 {
				t.Fatalf("vertex %d dim %d: %f; want %f", i, d, p[d], c[d])
			}
		}
	}
}

// Normals must stay unit length through the deformation
func TestViscoElasticNormalsUnit(t *testing.T) {
	m:=makeGrid(8, 8, 1, func(i int) float32 { return 0.05*float32(i%5) })
	targetPositions:=make([]float32, len(m.Features))
	copy(targetPositions, m.Features)
	for i:=0; i<m.NumVertices(); i++ {
		targetPositions[i*NumFeatures+2]+=0.3*float32(math.Sin(float64(i)))
	}
	weights:=make([]float32, m.NumVertices())
	for i:=range weights { weights[i]=1 }

	transformer:=NewViscoElasticTransformer(m, 10, 2.0, 1)
	transformer.Update(m, targetPositions, weights, 3, 3)

	for i:=0; i<m.NumVertices(); i++ {
		n:=m.Normal(i)
		norm:=math.Sqrt(float64(n[0]*n[0]+n[1]*n[1]+n[2]*n[2]))
		if math.Abs(norm-1)>1e-5 { t.Errorf("normal %d has length %f; want 1", i, norm) }
	}
}

// Vertices with zero weight contribute nothing: with all inlier weights zero,
// the smoothing falls back to the raw field and the mesh still moves
func TestViscoElasticZeroWeightFallback(t *testing.T) {
	m:=makeGrid(4, 4, 1, nil)
	reference:=m.Clone()
	targetPositions:=make([]float32, len(m.Features))
	copy(targetPositions, m.Features)
	for i:=0; i<m.NumVertices(); i++ { targetPositions[i*NumFeatures]+=1 }
	weights:=make([]float32, m.NumVertices()) // all zero

	transformer:=NewViscoElasticTransformer(m, 5, 1.0, 1)
	transformer.Update(m, targetPositions, weights, 1, 1)

	for i:=0; i<m.NumVertices(); i++ {
		want:=reference.Pos(i)[0]+1
		if math.Abs(float64(m.Pos(i)[0]-want))>1e-5 {
			t.Errorf("vertex %d x is %f; want %f", i, m.Pos(i)[0], want)
		}
	}
}
