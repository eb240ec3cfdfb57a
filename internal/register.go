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
	"github.com/valyala/fastrand"
	"github.com/mlnoga/surfreg/internal/qsort"
)

// All correspondences were rounded to invalid; registration cannot proceed
var ErrEmptyCorrespondence = errors.New("all correspondences are flagged invalid")

// The inlier weights sum to zero, so no transformation can be estimated
var ErrDegenerateWeights = errors.New("sum of inlier weights is zero")

// Settings for rigid registration
type RigidOptions struct {
	NumIterations int     `json:"numIterations"  yaml:"numIterations"`
	Symmetric     bool    `json:"symmetric"      yaml:"symmetric"`
	NumNeighbours int     `json:"numNeighbours"  yaml:"numNeighbours"`
	InlierKappa   float32 `json:"inlierKappa"    yaml:"inlierKappa"`
	AllowScaling  bool    `json:"allowScaling"   yaml:"allowScaling"`
	MaxThreads    int     `json:"maxThreads"     yaml:"maxThreads"`
}

// Returns the default rigid registration settings
func NewRigidOptions() RigidOptions {
	return RigidOptions{NumIterations: 20, Symmetric: true, NumNeighbours: 5, InlierKappa: 4.0}
}

// Settings for single-level non-rigid registration
type NonrigidOptions struct {
	NumIterations        int     `json:"numIterations"        yaml:"numIterations"`
	Symmetric            bool    `json:"symmetric"            yaml:"symmetric"`
	NumNeighbours        int     `json:"numNeighbours"        yaml:"numNeighbours"`
	InlierKappa          float32 `json:"inlierKappa"          yaml:"inlierKappa"`
	Sigma                float32 `json:"sigma"                yaml:"sigma"`
	SmoothingNeighbours  int     `json:"smoothingNeighbours"  yaml:"smoothingNeighbours"`
	ViscousStart         int     `json:"viscousStart"         yaml:"viscousStart"`
	ViscousEnd           int     `json:"viscousEnd"           yaml:"viscousEnd"`
	ElasticStart         int     `json:"elasticStart"         yaml:"elasticStart"`
	ElasticEnd           int     `json:"elasticEnd"           yaml:"elasticEnd"`
	MaxThreads           int     `json:"maxThreads"           yaml:"maxThreads"`
}

// Returns the default non-rigid registration settings
func NewNonrigidOptions() NonrigidOptions {
	return NonrigidOptions{
		NumIterations:       60,
		Symmetric:           true,
		NumNeighbours:       5,
		InlierKappa:         4.0,
		Sigma:               3.0,
		SmoothingNeighbours: 10,
		ViscousStart:        50, ViscousEnd: 1,
		ElasticStart:        50, ElasticEnd: 1,
	}
}

// Linearly interpolates an annealed pass count for iteration k of numIterations
func annealed(start, end, k, numIterations int) int {
	if numIterations<=1 { return end }
	v:=float64(start)+(float64(end)-float64(start))*float64(k)/float64(numIterations-1)
	return int(math.Round(v))
}

// Rigidly registers the floating mesh onto the target mesh: iterated correspondence
// estimation, inlier weighting and weighted Horn alignment. Mutates the floating
// mesh's features in place
func RigidRegistration(floating, target *Mesh, opts RigidOptions) error {
	if err:=floating.Validate(); err!=nil { return errors.Wrap(err, "floating mesh") }
	if err:=target.Validate();   err!=nil { return errors.Wrap(err, "target mesh") }

	numVertices:=floating.NumVertices()
	filter:=NewCorrespondenceFilter(target, opts.NumNeighbours, opts.Symmetric, opts.MaxThreads)
	corresponding     :=make([]float32, numVertices*NumFeatures)
	correspondingFlags:=make([]float32, numVertices)
	weights           :=make([]float32, numVertices)
	for i:=range weights { weights[i]=1 }

	for k:=0; k<opts.NumIterations; k++ {
		if err:=filter.Update(floating, corresponding, correspondingFlags); err!=nil { return err }
		if err:=ComputeInlierWeights(floating, corresponding, correspondingFlags, weights, opts.InlierKappa); err!=nil { return err }
		if err:=ComputeRigidTransformation(floating, corresponding, weights, opts.AllowScaling); err!=nil { return err }
		LogPrintf("rigid %2d/%d: median residual %.6g\n", k+1, opts.NumIterations,
			medianResidual(floating, corresponding))
	}
	return nil
}

// Non-rigidly registers the floating mesh onto the target mesh at a single
// resolution: per iteration, correspondences, inlier weights and a viscoelastic
// update with linearly annealed viscous and elastic pass counts. Mutates the
// floating mesh's features in place
func NonrigidRegistration(floating, target *Mesh, opts NonrigidOptions) error {
	if err:=floating.Validate(); err!=nil { return errors.Wrap(err, "floating mesh") }
	if err:=target.Validate();   err!=nil { return errors.Wrap(err, "target mesh") }

	numVertices:=floating.NumVertices()
	filter:=NewCorrespondenceFilter(target, opts.NumNeighbours, opts.Symmetric, opts.MaxThreads)
	transformer:=NewViscoElasticTransformer(floating, opts.SmoothingNeighbours, opts.Sigma, opts.MaxThreads)
	corresponding     :=make([]float32, numVertices*NumFeatures)
	correspondingFlags:=make([]float32, numVertices)
	weights           :=make([]float32, numVertices)
	for i:=range weights { weights[i]=1 }

	for k:=0; k<opts.NumIterations; k++ {
		if err:=filter.Update(floating, corresponding, correspondingFlags); err!=nil { return err }
		if err:=ComputeInlierWeights(floating, corresponding, correspondingFlags, weights, opts.InlierKappa); err!=nil { return err }
		numViscous:=annealed(opts.ViscousStart, opts.ViscousEnd, k, opts.NumIterations)
		numElastic:=annealed(opts.ElasticStart, opts.ElasticEnd, k, opts.NumIterations)
		transformer.Update(floating, corresponding, weights, numViscous, numElastic)
		LogPrintf("nonrigid %2d/%d: viscous %d elastic %d median residual %.6g\n",
			k+1, opts.NumIterations, numViscous, numElastic, medianResidual(floating, corresponding))
	}
	return nil
}

// Number of residuals sampled for the progress median on large meshes
const residualNumSamples = 4096

// Calculates the median position residual between the floating vertices and their
// correspondences, subsampling large meshes with a fast RNG for reporting speed
func medianResidual(floating *Mesh, corresponding []float32) float32 {
	numVertices:=floating.NumVertices()
	numSamples:=numVertices
	if numSamples>residualNumSamples { numSamples=residualNumSamples }
	samples:=make([]float32, numSamples)
	rng:=fastrand.RNG{}
	for s:=0; s<numSamples; s++ {
		i:=s
		if numVertices>numSamples { i=int(rng.Uint32n(uint32(numVertices))) }
		p, c:=floating.Pos(i), corresponding[i*NumFeatures:i*NumFeatures+3]
		dx,dy,dz:=p[0]-c[0], p[1]-c[1], p[2]-c[2]
		samples[s]=float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz)))
	}
	return qsort.QSelectMedianFloat32(samples)
}
