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
)

// Settings for pyramid non-rigid registration. Downsample percentages give the
// decimation at the coarsest and finest level; intermediate levels interpolate
// linearly. The total iteration count is divided evenly across the levels
type PyramidOptions struct {
	NumIterations         int     `json:"numIterations"         yaml:"numIterations"`
	NumPyramidLayers      int     `json:"numPyramidLayers"      yaml:"numPyramidLayers"`
	DownsampleFloatStart  float32 `json:"downsampleFloatStart"  yaml:"downsampleFloatStart"`
	DownsampleTargetStart float32 `json:"downsampleTargetStart" yaml:"downsampleTargetStart"`
	DownsampleFloatEnd    float32 `json:"downsampleFloatEnd"    yaml:"downsampleFloatEnd"`
	DownsampleTargetEnd   float32 `json:"downsampleTargetEnd"   yaml:"downsampleTargetEnd"`
	Symmetric             bool    `json:"symmetric"             yaml:"symmetric"`
	NumNeighbours         int     `json:"numNeighbours"         yaml:"numNeighbours"`
	InlierKappa           float32 `json:"inlierKappa"           yaml:"inlierKappa"`
	Sigma                 float32 `json:"sigma"                 yaml:"sigma"`
	SmoothingNeighbours   int     `json:"smoothingNeighbours"   yaml:"smoothingNeighbours"`
	ViscousStart          int     `json:"viscousStart"          yaml:"viscousStart"`
	ViscousEnd            int     `json:"viscousEnd"            yaml:"viscousEnd"`
	ElasticStart          int     `json:"elasticStart"          yaml:"elasticStart"`
	ElasticEnd            int     `json:"elasticEnd"            yaml:"elasticEnd"`
	RigidIterations       int     `json:"rigidIterations"       yaml:"rigidIterations"`
	MaxThreads            int     `json:"maxThreads"            yaml:"maxThreads"`
}

// Returns the default pyramid registration settings
func NewPyramidOptions() PyramidOptions {
	return PyramidOptions{
		NumIterations:         60,
		NumPyramidLayers:      3,
		DownsampleFloatStart:  90, DownsampleTargetStart: 90,
		DownsampleFloatEnd:    0,  DownsampleTargetEnd:   0,
		Symmetric:             true,
		NumNeighbours:         5,
		InlierKappa:           4.0,
		Sigma:                 3.0,
		SmoothingNeighbours:   10,
		ViscousStart:          50, ViscousEnd: 1,
		ElasticStart:          50, ElasticEnd: 1,
		RigidIterations:       20,
	}
}

// Interpolates the decimation ratio for level l of numLevels between the coarsest
// and finest percentage, as a fraction in [0,1]
func levelRatio(startPercent, endPercent float32, l, numLevels int) float32 {
	if numLevels<=1 { return endPercent/100 }
	f:=float32(l)/float32(numLevels-1)
	return (startPercent+(endPercent-startPercent)*f)/100
}

// Non-rigidly registers the floating mesh onto the target over a coarse-to-fine
// pyramid: each level downsamples both meshes from their originals, the coarsest
// level is rigidly preconditioned, each level runs its share of the non-rigid
// iterations, and the deformation is scale-shifted onto the next finer level.
// Mutates the floating mesh's features in place
func PyramidRegistration(floating, target *Mesh, opts PyramidOptions) error {
	if err:=floating.Validate(); err!=nil { return errors.Wrap(err, "floating mesh") }
	if err:=target.Validate();   err!=nil { return errors.Wrap(err, "target mesh") }

	numLevels:=opts.NumPyramidLayers
	if numLevels<1 { numLevels=1 }
	perLevel:=int(math.Round(float64(opts.NumIterations)/float64(numLevels)))
	if perLevel<1 { perLevel=1 }

	original:=floating.Clone() // undeformed reference all levels downsample from
	var prevFeatures []float32
	var prevIndices  []int32

	for l:=0; l<numLevels; l++ {
		ratioFloat :=levelRatio(opts.DownsampleFloatStart,  opts.DownsampleFloatEnd,  l, numLevels)
		ratioTarget:=levelRatio(opts.DownsampleTargetStart, opts.DownsampleTargetEnd, l, numLevels)

		levelFloat, floatIndices, err:=downsampleLevel(original, ratioFloat)
		if err!=nil { return errors.Wrapf(err, "downsampling floating mesh for level %d", l) }
		levelTarget:=target
		if ratioTarget>0 {
			levelTarget, _, err=DownsampleMesh(target, ratioTarget)
			if err!=nil { return errors.Wrapf(err, "downsampling target mesh for level %d", l) }
		}
		LogPrintf("level %d/%d: floating %d of %d vertices, target %d of %d\n",
			l+1, numLevels, levelFloat.NumVertices(), original.NumVertices(),
			levelTarget.NumVertices(), target.NumVertices())

		if l>0 {
			if err:=ScaleShiftMesh(prevFeatures, prevIndices, levelFloat.Features, floatIndices); err!=nil {
				return errors.Wrapf(err, "scale shift onto level %d", l)
			}
		} else if opts.RigidIterations>0 {
			rigid:=RigidOptions{
				NumIterations: opts.RigidIterations,
				Symmetric:     opts.Symmetric,
				NumNeighbours: opts.NumNeighbours,
				InlierKappa:   opts.InlierKappa,
				MaxThreads:    opts.MaxThreads,
			}
			if err:=RigidRegistration(levelFloat, levelTarget, rigid); err!=nil {
				return errors.Wrap(err, "rigid preconditioning")
			}
		}

		nonrigid:=NonrigidOptions{
			NumIterations:       perLevel,
			Symmetric:           opts.Symmetric,
			NumNeighbours:       opts.NumNeighbours,
			InlierKappa:         opts.InlierKappa,
			Sigma:               opts.Sigma,
			SmoothingNeighbours: opts.SmoothingNeighbours,
			ViscousStart:        opts.ViscousStart, ViscousEnd: opts.ViscousEnd,
			ElasticStart:        opts.ElasticStart, ElasticEnd: opts.ElasticEnd,
			MaxThreads:          opts.MaxThreads,
		}
		if err:=NonrigidRegistration(levelFloat, levelTarget, nonrigid); err!=nil {
			return errors.Wrapf(err, "level %d", l)
		}

		prevFeatures, prevIndices=levelFloat.Features, floatIndices
	}

	// lift the last level's result onto the full-resolution mesh if it was decimated
	if len(prevFeatures)==len(floating.Features) {
		copy(floating.Features, prevFeatures)
	} else {
		if err:=ScaleShiftMesh(prevFeatures, prevIndices, floating.Features, identityIndices(floating.NumVertices())); err!=nil {
			return errors.Wrap(err, "scale shift onto full resolution")
		}
		floating.RecomputeNormals()
	}
	return nil
}

// Downsamples the mesh to the given decimation ratio, or clones it unchanged with
// an identity index map when the ratio is zero
func downsampleLevel(m *Mesh, ratio float32) (*Mesh, []int32, error) {
	if ratio<=0 {
		return m.Clone(), identityIndices(m.NumVertices()), nil
	}
	return DownsampleMesh(m, ratio)
}

func identityIndices(n int) []int32 {
	indices:=make([]int32, n)
	for i:=range indices { indices[i]=int32(i) }
	return indices
}
