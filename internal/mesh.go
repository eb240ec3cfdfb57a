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

// Number of features per vertex: position x,y,z followed by normal nx,ny,nz
const NumFeatures = 6

// A triangular surface mesh as flat buffers. Features holds NumVertices x NumFeatures
// float32 in row-major order, Faces holds NumFaces x 3 vertex indices, and Flags holds
// one binary validity marker per vertex (1=usable, 0=excluded)
type Mesh struct {
	Features []float32
	Faces    []int32
	Flags    []float32
}

// Returns the number of vertices in the mesh
func (m *Mesh) NumVertices() int { return len(m.Features)/NumFeatures }

// Returns the number of triangles in the mesh
func (m *Mesh) NumFaces() int { return len(m.Faces)/3 }

// Returns the position slice [x y z] of vertex i, aliasing the feature buffer
func (m *Mesh) Pos(i int) []float32 { return m.Features[i*NumFeatures : i*NumFeatures+3] }

// Returns the normal slice [nx ny nz] of vertex i, aliasing the feature buffer
func (m *Mesh) Normal(i int) []float32 { return m.Features[i*NumFeatures+3 : i*NumFeatures+6] }

// Creates a mesh of the given vertex and face capacity with all flags set to one
func NewMesh(numVertices, numFaces int) *Mesh {
	m:=&Mesh{
		Features: make([]float32, numVertices*NumFeatures),
		Faces:    make([]int32,   numFaces*3),
		Flags:    make([]float32, numVertices),
	}
	for i:=range m.Flags { m.Flags[i]=1 }
	return m
}

// Returns a deep copy of the mesh
func (m *Mesh) Clone() *Mesh {
	c:=&Mesh{
		Features: make([]float32, len(m.Features)),
		Faces:    make([]int32,   len(m.Faces)),
		Flags:    make([]float32, len(m.Flags)),
	}
	copy(c.Features, m.Features)
	copy(c.Faces,    m.Faces)
	copy(c.Flags,    m.Flags)
	return c
}

// Validates mesh invariants: non-empty, flags matching the vertex count and binary,
// and face indices in range. Returns a descriptive error for malformed input
func (m *Mesh) Validate() error {
	numVertices:=m.NumVertices()
	if numVertices==0 { return errors.New("mesh has no vertices") }
	if len(m.Features)%NumFeatures!=0 {
		return errors.Errorf("feature buffer length %d is not a multiple of %d", len(m.Features), NumFeatures)
	}
	if len(m.Faces)%3!=0 {
		return errors.Errorf("face buffer length %d is not a multiple of 3", len(m.Faces))
	}
	if len(m.Flags)!=numVertices {
		return errors.Errorf("have %d flags for %d vertices", len(m.Flags), numVertices)
	}
	for i,f:=range m.Flags {
		if f!=0 && f!=1 { return errors.Errorf("flag %d is %f, not binary", i, f) }
	}
	for i:=0; i<m.NumFaces(); i++ {
		a,b,c:=m.Faces[3*i], m.Faces[3*i+1], m.Faces[3*i+2]
		if a<0 || b<0 || c<0 || int(a)>=numVertices || int(b)>=numVertices || int(c)>=numVertices {
			return errors.Errorf("face %d references vertex out of range [0,%d)", i, numVertices)
		}
		if a==b || b==c || a==c { return errors.Errorf("face %d is degenerate", i) }
	}
	return nil
}

// Extracts all vertex positions into a flat Nx3 buffer, reusing dest if it has the right size
func (m *Mesh) Positions(dest []float32) []float32 {
	numVertices:=m.NumVertices()
	if len(dest)!=numVertices*3 { dest=make([]float32, numVertices*3) }
	for i:=0; i<numVertices; i++ {
		copy(dest[3*i:3*i+3], m.Pos(i))
	}
	return dest
}

// Recomputes all vertex normals from the faces as the area-weighted average of incident
// face normals, then normalizes to unit length. Vertices without incident faces keep
// their prior normal
func (m *Mesh) RecomputeNormals() {
	numVertices:=m.NumVertices()
	accum:=make([]float32, numVertices*3)

	for i:=0; i<m.NumFaces(); i++ {
		a,b,c:=int(m.Faces[3*i]), int(m.Faces[3*i+1]), int(m.Faces[3*i+2])
		pa,pb,pc:=m.Pos(a), m.Pos(b), m.Pos(c)

		// cross product of the edge vectors has length twice the face area,
		// so summing it unnormalized yields the area weighting
		e1x,e1y,e1z:=pb[0]-pa[0], pb[1]-pa[1], pb[2]-pa[2]
		e2x,e2y,e2z:=pc[0]-pa[0], pc[1]-pa[1], pc[2]-pa[2]
		nx:=e1y*e2z-e1z*e2y
		ny:=e1z*e2x-e1x*e2z
		nz:=e1x*e2y-e1y*e2x

		for _,v:=range []int{a,b,c} {
			accum[3*v  ]+=nx
			accum[3*v+1]+=ny
			accum[3*v+2]+=nz
		}
	}

	for i:=0; i<numVertices; i++ {
		nx,ny,nz:=accum[3*i], accum[3*i+1], accum[3*i+2]
		norm:=float32(math.Sqrt(float64(nx*nx+ny*ny+nz*nz)))
		if norm==0 { continue }
		n:=m.Normal(i)
		n[0], n[1], n[2] = nx/norm, ny/norm, nz/norm
	}
}

// Returns the diagonal length of the axis-aligned bounding box of the mesh
func (m *Mesh) BoundingBoxDiagonal() float32 {
	numVertices:=m.NumVertices()
	if numVertices==0 { return 0 }
	min:=[3]float32{ math.MaxFloat32,  math.MaxFloat32,  math.MaxFloat32}
	max:=[3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for i:=0; i<numVertices; i++ {
		p:=m.Pos(i)
		for d:=0; d<3; d++ {
			if p[d]<min[d] { min[d]=p[d] }
			if p[d]>max[d] { max[d]=p[d] }
		}
	}
	dx,dy,dz:=max[0]-min[0], max[1]-min[1], max[2]-min[2]
	return float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz)))
}
