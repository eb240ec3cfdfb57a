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
	"testing"
)

// With zero residual everywhere the weights must equal the corresponding flags
func TestInlierWeightsIdentity(t *testing.T) {
	m:=makeCube(0, 0, 0)
	corresponding:=make([]float32, len(m.Features))
	copy(corresponding, m.Features)
	correspondingFlags:=make([]float32, m.NumVertices())
	for i:=range correspondingFlags { correspondingFlags[i]=1 }
	correspondingFlags[2]=0

	weights:=make([]float32, m.NumVertices())
	for i:=range weights { weights[i]=1 }
	if err:=ComputeInlierWeights(m, corresponding, correspondingFlags, weights, 4.0); err!=nil {
		t.Fatalf("computing inlier weights: %s", err.Error())
	}
	for i, w:=range weights {
		if w!=correspondingFlags[i] { t.Errorf("weight %d is %f; want %f", i, w, correspondingFlags[i]) }
	}
}

// An outlying vertex must receive a clearly lower weight than conforming ones,
// and all weights must stay in [0,1]
func TestInlierWeightsOutlier(t *testing.T) {
	m:=makeGrid(5, 5, 1, nil)
	corresponding:=make([]float32, len(m.Features))
	copy(corresponding, m.Features)
	for i:=0; i<m.NumVertices(); i++ { // uniform small residual
		corresponding[i*NumFeatures]+=0.01
	}
	corresponding[12*NumFeatures]+=5.0 // one gross outlier
	correspondingFlags:=make([]float32, m.NumVertices())
	for i:=range correspondingFlags { correspondingFlags[i]=1 }

	weights:=make([]float32, m.NumVertices())
	for i:=range weights { weights[i]=1 }
	if err:=ComputeInlierWeights(m, corresponding, correspondingFlags, weights, 4.0); err!=nil {
		t.Fatalf("computing inlier weights: %s", err.Error())
	}
	for i, w:=range weights {
		if w<0 || w>1 { t.Errorf("weight %d is %f, outside [0,1]", i, w) }
	}
	if weights[12]>0.5*weights[0] {
		t.Errorf("outlier weight %f not clearly below inlier weight %f", weights[12], weights[0])
	}
}

// All corresponding flags zero must yield the degenerate weight error
func TestInlierWeightsDegenerate(t *testing.T) {
	m:=makeCube(0, 0, 0)
	corresponding:=make([]float32, len(m.Features))
	copy(corresponding, m.Features)
	for i:=range corresponding { corresponding[i]+=1 } // nonzero residuals
	correspondingFlags:=make([]float32, m.NumVertices())

	weights:=make([]float32, m.NumVertices())
	for i:=range weights { weights[i]=1 }
	err:=ComputeInlierWeights(m, corresponding, correspondingFlags, weights, 4.0)
	if err!=ErrDegenerateWeights {
		t.Errorf("got error %v; want ErrDegenerateWeights", err)
	}
}

func TestAnnealed(t *testing.T) {
	tcs:=[]struct{ start, end, k, n, want int }{
		{50, 1, 0, 10, 50},
		{50, 1, 9, 10, 1},
		{50, 1, 0, 1, 1},
		{50, 50, 3, 7, 50},
		{10, 2, 2, 5, 6},
	}
	for _, tc:=range tcs {
		if got:=annealed(tc.start, tc.end, tc.k, tc.n); got!=tc.want {
			t.Errorf("annealed(%d,%d,%d,%d)=%d; want %d", tc.start, tc.end, tc.k, tc.n, got, tc.want)
		}
	}
}
