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
	"github.com/valyala/fastrand"
)

// Above this vertex count the inlier sigma is estimated from a random subsample
// of the residuals instead of the full buffer
const inlierSampleThreshold = 16384

// Number of residuals sampled for the approximate sigma estimate
const inlierNumSamples = 4096

// Computes a robust inlier weight in [0,1] per floating vertex from the position
// residual to its correspondence. weights doubles as input (previous iteration's
// weights, or all ones on the first pass) and output. The scale sigma is the
// weighted mean residual; the kernel is an L-shaped falloff at kappa*sigma.
// Invalid correspondences receive weight zero
func ComputeInlierWeights(floating *Mesh, corresponding, correspondingFlags, weights []float32, kappa float32) error {
	numVertices:=floating.NumVertices()
	residuals:=make([]float32, numVertices)
	for i:=0; i<numVertices; i++ {
		p, c:=floating.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
		dx,dy,dz:=p[0]-c[0], p[1]-c[1], p[2]-c[2]
		residuals[i]=float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz)))
	}

	sigma:=weightedMeanResidual(residuals, weights)
	if sigma==0 {
		// zero residual everywhere, e.g. registering a mesh onto itself
		for i:=0; i<numVertices; i++ { weights[i]=correspondingFlags[i] }
		return nil
	}

	lambda:=1.0/(kappa*sigma)
	sumWeights:=float32(0)
	for i:=0; i<numVertices; i++ {
		x:=residuals[i]*lambda
		weights[i]=correspondingFlags[i]/(1.0+x*x)
		sumWeights+=weights[i]
	}
	if sumWeights==0 { return ErrDegenerateWeights }
	return nil
}

// Computes the weighted mean of the residuals. Large buffers are subsampled with
// a fast RNG, trading a little accuracy for linear-time independence of mesh size
func weightedMeanResidual(residuals, weights []float32) float32 {
	if len(residuals)>inlierSampleThreshold {
		rng:=fastrand.RNG{}
		max:=uint32(len(residuals))
		sum, sumWeights:=float32(0), float32(0)
		for i:=0; i<inlierNumSamples; i++ {
			index:=rng.Uint32n(max)
			sum       +=weights[index]*residuals[index]
			sumWeights+=weights[index]
		}
		if sumWeights==0 { return 0 }
		return sum/sumWeights
	}

	sum, sumWeights:=float32(0), float32(0)
	for i,r:=range residuals {
		sum       +=weights[i]*r
		sumWeights+=weights[i]
	}
	if sumWeights==0 { return 0 }
	return sum/sumWeights
}
