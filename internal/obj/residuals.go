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


package obj

import (
	"math"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	nl "github.com/mlnoga/surfreg/internal"
)

// Writes the registered mesh with a per-vertex residual heat map as OBJ vertex
// colors: blue for vertices that landed on the reference, through to red at the
// maximum residual. Both meshes must have the same vertex count
func WriteResiduals(registered, reference *nl.Mesh, fileName string) error {
	numVertices:=registered.NumVertices()
	if reference.NumVertices()!=numVertices {
		return errors.Errorf("registered mesh has %d vertices, reference %d", numVertices, reference.NumVertices())
	}

	residuals:=make([]float32, numVertices)
	maxResidual:=float32(0)
	for i:=0; i<numVertices; i++ {
		p, q:=registered.Pos(i), reference.Pos(i)
		dx,dy,dz:=p[0]-q[0], p[1]-q[1], p[2]-q[2]
		residuals[i]=float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz)))
		if residuals[i]>maxResidual { maxResidual=residuals[i] }
	}

	colors:=make([]float32, numVertices*3)
	for i, r:=range residuals {
		t:=float64(0)
		if maxResidual>0 { t=float64(r/maxResidual) }
		c:=colorful.Hsv(240*(1-t), 1, 1) // blue (cold) to red (hot)
		colors[3*i], colors[3*i+1], colors[3*i+2] = float32(c.R), float32(c.G), float32(c.B)
	}
	return writeMesh(registered, fileName, colors)
}
