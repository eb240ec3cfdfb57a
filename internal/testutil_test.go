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
)

// Builds the canonical unit cube with 8 vertices and 12 triangles, shifted by the
// given offset, with normals recomputed from the faces
func makeCube(dx, dy, dz float32) *Mesh {
	positions:=[][3]float32{
		{0,0,0}, {0,1,0}, {1,0,0}, {1,1,0},
		{0,0,1}, {0,1,1}, {1,0,1}, {1,1,1},
	}
	faces:=[]int32{
		0,1,3, 0,3,2, // bottom
		4,6,7, 4,7,5, // top
		0,2,6, 0,6,4, // front
		1,5,7, 1,7,3, // back
		0,4,5, 0,5,1, // left
		2,3,7, 2,7,6, // right
	}
	m:=NewMesh(len(positions), 0)
	m.Faces=faces
	for i, p:=range positions {
		pos:=m.Pos(i)
		pos[0], pos[1], pos[2] = p[0]+dx, p[1]+dy, p[2]+dz
	}
	m.RecomputeNormals()
	return m
}

// Builds a regular nx by ny surface grid in the xy plane with the given spacing,
// z displaced per vertex by zOf, triangulated into 2(nx-1)(ny-1) faces
func makeGrid(nx, ny int, spacing float32, zOf func(i int) float32) *Mesh {
	m:=NewMesh(nx*ny, 0)
	for y:=0; y<ny; y++ {
		for x:=0; x<nx; x++ {
			i:=y*nx+x
			p:=m.Pos(i)
			p[0], p[1] = float32(x)*spacing, float32(y)*spacing
			if zOf!=nil { p[2]=zOf(i) }
		}
	}
	for y:=0; y+1<ny; y++ {
		for x:=0; x+1<nx; x++ {
			a:=int32(y*nx+x)
			b:=a+1
			c:=a+int32(nx)
			d:=c+1
			m.Faces=append(m.Faces, a,b,d, a,d,c)
		}
	}
	m.RecomputeNormals()
	return m
}

// Rotates all positions and normals about the z axis by the given angle in radians
func rotateZ(m *Mesh, angle float32) {
	sin, cos:=float32(math.Sin(float64(angle))), float32(math.Cos(float64(angle)))
	for i:=0; i<m.NumVertices(); i++ {
		for _, v:=range [][]float32{m.Pos(i), m.Normal(i)} {
			x, y:=v[0], v[1]
			v[0], v[1] = cos*x-sin*y, sin*x+cos*y
		}
	}
}

// Root mean square distance between corresponding vertex positions of two meshes
func rmsError(a, b *Mesh) float32 {
	sum:=float64(0)
	for i:=0; i<a.NumVertices(); i++ {
		p, q:=a.Pos(i), b.Pos(i)
		dx,dy,dz:=p[0]-q[0], p[1]-q[1], p[2]-q[2]
		sum+=float64(dx*dx+dy*dy+dz*dz)
	}
	return float32(math.Sqrt(sum/float64(a.NumVertices())))
}

// Largest distance between corresponding vertex positions of two meshes
func maxError(a, b *Mesh) float32 {
	max:=float32(0)
	for i:=0; i<a.NumVertices(); i++ {
		p, q:=a.Pos(i), b.Pos(i)
		dx,dy,dz:=p[0]-q[0], p[1]-q[1], p[2]-q[2]
		d:=float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz)))
		if d>max { max=d }
	}
	return max
}
