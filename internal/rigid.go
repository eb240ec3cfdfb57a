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
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Computes the weighted rigid (or similarity, if allowScaling) transformation from
// the floating positions onto the corresponding positions with Horn's quaternion
// method, and applies it in place: positions get the full transform, normals get
// the rotation only and are renormalized.
//
// The rotation quaternion is the eigenvector for the largest eigenvalue of the
// 4x4 matrix assembled from the weighted cross-variance of the two point sets
func ComputeRigidTransformation(floating *Mesh, corresponding, weights []float32, allowScaling bool) error {
	numVertices:=floating.NumVertices()

	// weighted centroids of both sets
	var sumWeights float64
	var muF, muC [3]float64
	for i:=0; i<numVertices; i++ {
		w:=float64(weights[i])
		p, c:=floating.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
		for d:=0; d<3; d++ {
			muF[d]+=w*float64(p[d])
			muC[d]+=w*float64(c[d])
		}
		sumWeights+=w
	}
	if sumWeights<=0 { return ErrDegenerateWeights }
	for d:=0; d<3; d++ {
		muF[d]/=sumWeights
		muC[d]/=sumWeights
	}

	// cross-variance of the weighted, centered point sets
	var sigma [3][3]float64
	for i:=0; i<numVertices; i++ {
		w:=float64(weights[i])
		p, c:=floating.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
		for r:=0; r<3; r++ {
			for s:=0; s<3; s++ {
				sigma[r][s]+=w*float64(p[r])*float64(c[s])
			}
		}
	}
	for r:=0; r<3; r++ {
		for s:=0; s<3; s++ {
			sigma[r][s]=sigma[r][s]/sumWeights - muF[r]*muC[s]
		}
	}

	// cyclic components of the antisymmetric part, and the 4x4 quaternion matrix Q
	trace:=sigma[0][0]+sigma[1][1]+sigma[2][2]
	delta:=[3]float64{sigma[1][2]-sigma[2][1], sigma[2][0]-sigma[0][2], sigma[0][1]-sigma[1][0]}
	qd:=make([]float64, 16)
	qd[0]=trace
	for d:=0; d<3; d++ {
		qd[d+1]    =delta[d]
		qd[4*(d+1)]=delta[d]
	}
	for r:=0; r<3; r++ {
		for s:=0; s<3; s++ {
			qd[4*(r+1)+s+1]=sigma[r][s]+sigma[s][r]
			if r==s { qd[4*(r+1)+s+1]-=trace }
		}
	}

	var eig mat.EigenSym
	if ok:=eig.Factorize(mat.NewSymDense(4, qd), true); !ok {
		return errors.New("eigen decomposition of quaternion matrix failed")
	}
	values:=eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues come sorted ascending; scan for the largest anyway, taking the
	// highest index on exact ties for determinism
	maxIndex:=0
	for i:=1; i<4; i++ {
		if values[i]>=values[maxIndex] { maxIndex=i }
	}
	var quat [4]float64
	for d:=0; d<4; d++ { quat[d]=vectors.At(d, maxIndex) }
	if quat[0]<0 { // eigenvector sign is arbitrary, fix the scalar part non-negative
		for d:=0; d<4; d++ { quat[d]=-quat[d] }
	}

	rot:=quaternionToRotation(quat)

	// optional uniform scale from the rotated, centered floating set
	scale:=1.0
	if allowScaling {
		var numerator, denominator float64
		for i:=0; i<numVertices; i++ {
			w:=float64(weights[i])
			p, c:=floating.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
			var rf [3]float64
			for r:=0; r<3; r++ {
				for s:=0; s<3; s++ {
					rf[r]+=rot[r][s]*(float64(p[s])-muF[s])
				}
			}
			for d:=0; d<3; d++ {
				numerator  +=w*(float64(c[d])-muC[d])*rf[d]
				denominator+=w*rf[d]*rf[d]
			}
		}
		if denominator<=0 { return ErrDegenerateWeights }
		scale=numerator/denominator
	}

	var translation [3]float64
	for d:=0; d<3; d++ {
		translation[d]=muC[d]
		for s:=0; s<3; s++ {
			translation[d]-=scale*rot[d][s]*muF[s]
		}
	}

	// apply: positions get scale, rotation and translation; normals rotation only
	parallelOver(numVertices, 0, func(lo, hi int) {
		for i:=lo; i<hi; i++ {
			p, n:=floating.Pos(i), floating.Normal(i)
			var np, nn [3]float64
			for r:=0; r<3; r++ {
				for s:=0; s<3; s++ {
					np[r]+=rot[r][s]*float64(p[s])
					nn[r]+=rot[r][s]*float64(n[s])
				}
				np[r]=scale*np[r]+translation[r]
			}
			norm:=math.Sqrt(nn[0]*nn[0]+nn[1]*nn[1]+nn[2]*nn[2])
			if norm==0 { norm=1 }
			for r:=0; r<3; r++ {
				p[r]=float32(np[r])
				n[r]=float32(nn[r]/norm)
			}
		}
	})
	return nil
}

// Expands a unit quaternion [w x y z] into a 3x3 rotation matrix
func quaternionToRotation(q [4]float64) (rot [3][3]float64) {
	rot[0][0]=q[0]*q[0]+q[1]*q[1]-q[2]*q[2]-q[3]*q[3]
	rot[1][1]=q[0]*q[0]+q[2]*q[2]-q[1]*q[1]-q[3]*q[3]
	rot[2][2]=q[0]*q[0]+q[3]*q[3]-q[1]*q[1]-q[2]*q[2]
	rot[0][1]=2.0*(q[1]*q[2]-q[0]*q[3])
	rot[1][0]=2.0*(q[1]*q[2]+q[0]*q[3])
	rot[0][2]=2.0*(q[1]*q[3]+q[0]*q[2])
	rot[2][0]=2.0*(q[1]*q[3]-q[0]*q[2])
	rot[1][2]=2.0*(q[2]*q[3]-q[0]*q[1])
	rot[2][1]=2.0*(q[2]*q[3]+q[0]*q[1])
	return rot
}
