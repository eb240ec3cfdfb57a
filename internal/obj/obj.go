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


// Wavefront OBJ reading and writing for triangular surface meshes.
package obj

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"github.com/pkg/errors"
	nl "github.com/mlnoga/surfreg/internal"
)

// Reads a triangular mesh from a Wavefront OBJ file. Vertex normals are taken
// from vn lines when their count matches the vertex count, else recomputed from
// the faces. Polygonal faces are fan-triangulated. Flags default to all ones
func ReadMesh(fileName string) (*nl.Mesh, error) {
	file, err:=os.Open(fileName)
	if err!=nil { return nil, errors.Wrapf(err, "opening %s", fileName) }
	defer file.Close()

	var positions, normals []float32
	var faces []int32

	scanner:=bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum:=0
	for scanner.Scan() {
		lineNum++
		fields:=strings.Fields(scanner.Text())
		if len(fields)==0 || strings.HasPrefix(fields[0], "#") { continue }

		switch fields[0] {
		case "v":
			if len(fields)<4 { return nil, errors.Errorf("%s:%d: vertex needs 3 coordinates", fileName, lineNum) }
			for _, f:=range fields[1:4] {
				v, err:=strconv.ParseFloat(f, 32)
				if err!=nil { return nil, errors.Wrapf(err, "%s:%d: parsing vertex", fileName, lineNum) }
				positions=append(positions, float32(v))
			}
		case "vn":
			if len(fields)<4 { return nil, errors.Errorf("%s:%d: normal needs 3 coordinates", fileName, lineNum) }
			for _, f:=range fields[1:4] {
				v, err:=strconv.ParseFloat(f, 32)
				if err!=nil { return nil, errors.Wrapf(err, "%s:%d: parsing normal", fileName, lineNum) }
				normals=append(normals, float32(v))
			}
		case "f":
			if len(fields)<4 { return nil, errors.Errorf("%s:%d: face needs at least 3 vertices", fileName, lineNum) }
			corners:=make([]int32, 0, len(fields)-1)
			for _, f:=range fields[1:] {
				index, err:=parseFaceCorner(f, len(positions)/3)
				if err!=nil { return nil, errors.Wrapf(err, "%s:%d: parsing face", fileName, lineNum) }
				corners=append(corners, index)
			}
			for i:=1; i+1<len(corners); i++ { // fan triangulation
				faces=append(faces, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err:=scanner.Err(); err!=nil { return nil, errors.Wrapf(err, "reading %s", fileName) }

	numVertices:=len(positions)/3
	if numVertices==0 { return nil, errors.Errorf("%s contains no vertices", fileName) }

	m:=nl.NewMesh(numVertices, 0)
	m.Faces=faces
	haveNormals:=len(normals)==len(positions)
	for i:=0; i<numVertices; i++ {
		copy(m.Pos(i), positions[3*i:3*i+3])
		if haveNormals { copy(m.Normal(i), normals[3*i:3*i+3]) }
	}
	if !haveNormals { m.RecomputeNormals() }

	if err:=m.Validate(); err!=nil { return nil, errors.Wrapf(err, "validating %s", fileName) }
	return m, nil
}

// Parses one face corner of the form v, v/vt, v//vn or v/vt/vn into a zero-based
// vertex index. Negative OBJ indices count back from the current vertex count
func parseFaceCorner(field string, numVertices int) (int32, error) {
	if slash:=strings.IndexByte(field, '/'); slash>=0 { field=field[:slash] }
	v, err:=strconv.Atoi(field)
	if err!=nil { return 0, err }
	if v<0 { v=numVertices+v+1 }
	if v<1 || v>numVertices { return 0, errors.Errorf("vertex index %d out of range [1,%d]", v, numVertices) }
	return int32(v-1), nil
}

// Writes the mesh to a Wavefront OBJ file with vertex positions, normals and
// one-based triangle faces
func WriteMesh(m *nl.Mesh, fileName string) error {
	return writeMesh(m, fileName, nil)
}

func writeMesh(m *nl.Mesh, fileName string, colors []float32) error {
	file, err:=os.Create(fileName)
	if err!=nil { return errors.Wrapf(err, "creating %s", fileName) }
	defer file.Close()

	w:=bufio.NewWriter(file)
	for i:=0; i<m.NumVertices(); i++ {
		p:=m.Pos(i)
		if colors!=nil {
			c:=colors[3*i:3*i+3]
			fmt.Fprintf(w, "v %g %g %g %.4f %.4f %.4f\n", p[0], p[1], p[2], c[0], c[1], c[2])
		} else {
			fmt.Fprintf(w, "v %g %g %g\n", p[0], p[1], p[2])
		}
	}
	for i:=0; i<m.NumVertices(); i++ {
		n:=m.Normal(i)
		fmt.Fprintf(w, "vn %g %g %g\n", n[0], n[1], n[2])
	}
	for i:=0; i<m.NumFaces(); i++ {
		a,b,c:=m.Faces[3*i]+1, m.Faces[3*i+1]+1, m.Faces[3*i+2]+1
		fmt.Fprintf(w, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
	}
	if err:=w.Flush(); err!=nil { return errors.Wrapf(err, "writing %s", fileName) }
	return nil
}

// Reads a per-vertex flag vector from a sidecar text file with one value per line.
// Values are rounded to binary
func ReadFlags(fileName string, numVertices int) ([]float32, error) {
	file, err:=os.Open(fileName)
	if err!=nil { return nil, errors.Wrapf(err, "opening %s", fileName) }
	defer file.Close()

	flags:=make([]float32, 0, numVertices)
	scanner:=bufio.NewScanner(file)
	for scanner.Scan() {
		line:=strings.TrimSpace(scanner.Text())
		if line=="" || strings.HasPrefix(line, "#") { continue }
		v, err:=strconv.ParseFloat(line, 32)
		if err!=nil { return nil, errors.Wrapf(err, "parsing flag line %d of %s", len(flags)+1, fileName) }
		if v>0.5 { flags=append(flags, 1) } else { flags=append(flags, 0) }
	}
	if err:=scanner.Err(); err!=nil { return nil, errors.Wrapf(err, "reading %s", fileName) }
	if len(flags)!=numVertices {
		return nil, errors.Errorf("%s has %d flags for %d vertices", fileName, len(flags), numVertices)
	}
	return flags, nil
}
