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


// REST endpoints wrapping the three registration entry points.
package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"github.com/gin-gonic/gin"

	nl "github.com/mlnoga/surfreg/internal"
	"github.com/mlnoga/surfreg/internal/obj"
)

// Serves the registration API. An optional chroot path and setuid id sandbox the
// process before listening, as registration requests reference server-local files
func Serve(chroot string, setuid int) {
	if err:=MakeSandbox(chroot, setuid); err!=nil {
		nl.LogFatalf("Unable to sandbox server: %s\n", err.Error())
	}

	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",     getPing)
			v1.POST("/rigid",    postRigid)
			v1.POST("/nonrigid", postNonrigid)
			v1.POST("/pyramid",  postPyramid)
		}
	}
	r.Run() // listen and serve on 0.0.0.0:8080
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err:=json.MarshalIndent(args, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Common file arguments for all registration requests
type meshArgs struct {
	Floating      string `json:"floating"`
	Target        string `json:"target"`
	Out           string `json:"out"`
	FloatingFlags string `json:"floatingFlags"`
	TargetFlags   string `json:"targetFlags"`
}

// Loads both meshes and their optional flag sidecar files
func (a *meshArgs) load() (floating, target *nl.Mesh, err error) {
	floating, err=obj.ReadMesh(a.Floating)
	if err!=nil { return nil, nil, err }
	target, err=obj.ReadMesh(a.Target)
	if err!=nil { return nil, nil, err }
	if a.FloatingFlags!="" {
		floating.Flags, err=obj.ReadFlags(a.FloatingFlags, floating.NumVertices())
		if err!=nil { return nil, nil, err }
	}
	if a.TargetFlags!="" {
		target.Flags, err=obj.ReadFlags(a.TargetFlags, target.NumVertices())
		if err!=nil { return nil, nil, err }
	}
	return floating, target, nil
}

// Runs one registration request, streaming the run log as text/plain
func runRegistration(c *gin.Context, args interface{}, files *meshArgs,
	register func(floating, target *nl.Mesh) error) {
	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	floating, target, err:=files.load()
	if err!=nil {
		fmt.Fprintf(logWriter, "Error loading meshes: %s\n", err.Error())
		return
	}

	nl.LogAlsoToWriter(logWriter)
	defer nl.LogAlsoToWriter(nil)
	if err:=register(floating, target); err!=nil {
		fmt.Fprintf(logWriter, "Error registering: %s\n", err.Error())
		return
	}

	if files.Out!="" {
		if err:=obj.WriteMesh(floating, files.Out); err!=nil {
			fmt.Fprintf(logWriter, "Error writing result: %s\n", err.Error())
			return
		}
		fmt.Fprintf(logWriter, "Wrote result to %s\n", files.Out)
	}
}

type postRigidArgs struct {
	meshArgs
	Options nl.RigidOptions `json:"options"`
}

func postRigid(c *gin.Context) {
	args:=postRigidArgs{Options: nl.NewRigidOptions()}
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	runRegistration(c, args, &args.meshArgs, func(floating, target *nl.Mesh) error {
		return nl.RigidRegistration(floating, target, args.Options)
	})
}

type postNonrigidArgs struct {
	meshArgs
	Options nl.NonrigidOptions `json:"options"`
}

func postNonrigid(c *gin.Context) {
	args:=postNonrigidArgs{Options: nl.NewNonrigidOptions()}
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	runRegistration(c, args, &args.meshArgs, func(floating, target *nl.Mesh) error {
		return nl.NonrigidRegistration(floating, target, args.Options)
	})
}

type postPyramidArgs struct {
	meshArgs
	Options nl.PyramidOptions `json:"options"`
}

func postPyramid(c *gin.Context) {
	args:=postPyramidArgs{Options: nl.NewPyramidOptions()}
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	runRegistration(c, args, &args.meshArgs, func(floating, target *nl.Mesh) error {
		return nl.PyramidRegistration(floating, target, args.Options)
	})
}
