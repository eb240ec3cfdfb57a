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

// One transform step with exact correspondences must undo a pure translation
func TestRigidTransformationTranslation(t *testing.T) {
	floating:=makeCube(0.1, 0.1, 0.1)
	target  :=makeCube(0, 0, 0)

	weights:=make([]float32, floating.NumVertices())
	for i:=range weights { weights[i]=1 }
	if err:=ComputeRigidTransformation(floating, target.Features, weights, false); err!=nil {
		t.Fatalf("computing rigid transformation: %s", err.Error())
	}
	if e:=maxError(floating, target); e>1e-4 {
		t.Errorf("max position error %g after translation recovery; want <1e-4", e)
	}
}

// One transform step with exact correspondences must undo a rotation about z
func TestRigidTransformationRotation(t *testing.T) {
	target  :=makeCube(0, 0, 0)
	floating:=makeCube(0, 0, 0)
	rotateZ(floating, 30*math.Pi/180)

	weights:=make([]float32, floating.NumVertices())
	for i:=range weights { weights[i]=1 }
	if err:=ComputeRigidTransformation(floating, target.Features, weights, false); err!=nil {
		t.Fatalf("computing rigid transformation: %s", err.Error())
	}
	if e:=maxError(floating, target); e>1e-4 {
		t.Errorf("max position error %g after rotation recovery; want <1e-4", e)
	}
	for i:=0; i<floating.NumVertices(); i++ {
		n:=floating.Normal(i)
		norm:=math.Sqrt(float64(n[0]*n[0]+n[1]*n[1]+n[2]*n[2]))
		if math.Abs(norm-1)>1e-5 { t.Errorf("normal %d has length %f; want 1", i, norm) }
	}
}

// Scale estimation must recover a uniform shrink
func TestRigidTransformationScaling(t *testing.T) {
	target  :=makeCube(0, 0, 0)
	floating:=makeCube(0, 0, 0)
	for i:=0; i<floating.NumVertices(); i++ {
		p:=floating.Pos(i)
		for d:=0; d<3; d++ { p[d]*=0.5 }
	}

	weights:=make([]float32, floating.NumVertices())
	for i:=range weights { weights[i]=1 }
	if err:=ComputeRigidTransformation(floating, target.Features, weights, true); err!=nil {
		t.Fatalf("computing rigid transformation: %s", err.Error())
	}
	if e:=maxError(floating, target); e>1e-4 {
		t.Errorf("max position error %g after scale recovery; want <1e-4", e)
	}
}

// Zero weights cannot define a transformation
func TestRigidTransformationDegenerate(t *testing.T) {
	floating:=makeCube(0, 0, 0)
	target  :=makeCube(0, 0, 0)
	weights :=make([]float32, floating.NumVertices())
	err:=ComputeRigidTransformation(floating, target.Features, weights, false)
	if err!=ErrDegenerateWeights {
		t.Errorf("got error %v; want ErrDegenerateWeights", err)
	}
}

// Full rigid registration must recover a small rigid motion of a surface grid
func TestRigidRegistrationRecovery(t *testing.T) {
	target:=makeGrid(10, 10, 1, func(i int) float32 { return 0.1*float32(i%7) })
	floating:=target.Clone()
	rotateZ(floating, 5*math.Pi/180)
	for i:=0; i<floating.NumVertices(); i++ {
		p:=floating.Pos(i)
		p[0]+=0.05
		p[1]-=0.03
	}

	opts:=NewRigidOptions()
	opts.NumIterations=50
	opts.MaxThreads=1
	if err:=RigidRegistration(floating, target, opts); err!=nil {
		t.Fatalf("registering: %s", err.Error())
	}
	if e:=rmsError(floating, target); e>1e-3 {
		t.Errorf("rms position error %g after rigid registration; want <1e-3", e)
	}
}
