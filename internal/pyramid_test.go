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

func TestLevelRatio(t *testing.T) {
	tcs:=[]struct {
		start, end float32
		l, n       int
		want       float32
	}{
		{90, 0, 0, 3, 0.90},
		{90, 0, 1, 3, 0.45},
		{90, 0, 2, 3, 0},
		{80, 20, 0, 1, 0.20},
		{50, 50, 1, 4, 0.50},
	}
	for _, tc:=range tcs {
		if got:=levelRatio(tc.start, tc.end, tc.l, tc.n); math.Abs(float64(got-tc.want))>1e-6 {
			t.Errorf("levelRatio(%g,%g,%d,%d)=%g; want %g", tc.start, tc.end, tc.l, tc.n, got, tc.want)
		}
	}
}

// A smooth low-frequency warp of a surface grid must be substantially undone by
// coarse-to-fine registration
func TestPyramidRegistrationSmoothWarp(t *testing.T) {
	target:=makeGrid(20, 20, 1, func(i int) float32 {
		x, y:=float64(i%20), float64(i/20)
		return float32(0.5*math.Sin(x/6)*math.Cos(y/7))
	})
	floating:=target.Clone()
	for i:=0; i<floating.NumVertices(); i++ {
		x, y:=float64(i%20), float64(i/20)
		p:=floating.Pos(i)
		p[2]+=float32(0.4*math.Sin(x/8+0.4)*math.Cos(y/9))
		p[0]+=float32(0.2*math.Sin(y/10))
	}
	floating.RecomputeNormals()
	before:=rmsError(floating, target)

	opts:=NewPyramidOptions()
	opts.NumIterations=30
	opts.NumPyramidLayers=2
	opts.DownsampleFloatStart, opts.DownsampleTargetStart=50, 50
	opts.Sigma=2.0
	opts.ViscousStart, opts.ViscousEnd=20, 1
	opts.ElasticStart, opts.ElasticEnd=20, 1
	opts.RigidIterations=10
	opts.MaxThreads=1
	if err:=PyramidRegistration(floating, target, opts); err!=nil {
		t.Fatalf("registering: %s", err.Error())
	}
	after:=rmsError(floating, target)

	if after>0.2*before {
		t.Errorf("rms error went from %g to %g; want at least 80%% reduction", before, after)
	}
	for i:=0; i<floating.NumVertices(); i++ {
		n:=floating.Normal(i)
		norm:=math.Sqrt(float64(n[0]*n[0]+n[1]*n[1]+n[2]*n[2]))
		if math.Abs(norm-1)>1e-5 { t.Errorf("normal %d has length %f; want 1", i, norm) }
	}
}

// Registering a mesh onto itself through the full pyramid must not move it
func TestPyramidRegistrationIdentity(t *testing.T) {
	floating:=makeGrid(12, 12, 1, func(i int) float32 { return 0.3*float32(i%5) })
	target  :=floating.Clone()
	reference:=floating.Clone()

	opts:=NewPyramidOptions()
	opts.NumIterations=9
	opts.NumPyramidLayers=3
	opts.DownsampleFloatStart, opts.DownsampleTargetStart=60, 60
	opts.ViscousStart, opts.ViscousEnd=5, 1
	opts.ElasticStart, opts.ElasticEnd=5, 1
	opts.RigidIterations=5
	opts.MaxThreads=1
	if err:=PyramidRegistration(floating, target, opts); err!=nil {
		t.Fatalf("registering: %s", err.Error())
	}
	if e:=rmsError(floating, reference); e>1e-3*reference.BoundingBoxDiagonal() {
		t.Errorf("rms displacement %g on identity pyramid registration; want near zero", e)
	}
}
