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


package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/debug"
	"strings"
	"time"
	nl "github.com/mlnoga/surfreg/internal"
	"github.com/mlnoga/surfreg/internal/obj"
	"github.com/mlnoga/surfreg/internal/rest"
	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"
)

const version = "0.1.2"

var totalMiBs=memory.TotalMemory()/1024/1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out       = flag.String("out", "out.obj", "save registered mesh to `file`")
var log       = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var residuals = flag.String("residuals", "", "save residual heat map mesh with vertex colors to `file`")
var config    = flag.String("config", "", "load registration settings from YAML `file`, overriding flags")

var flagsFloat  = flag.String("flags", "", "load floating vertex flags from `file`, one value per line; default all valid")
var flagsTarget = flag.String("targetFlags", "", "load target vertex flags from `file`, one value per line; default all valid")

var iterations = flag.Int64("iterations", 60, "total non-rigid iterations, divided across pyramid levels")
var layers     = flag.Int64("layers", 3, "number of pyramid resolution levels")
var dsFloatStart = flag.Float64("dsFloatStart", 90, "% decimation of the floating mesh at the coarsest level")
var dsFloatEnd   = flag.Float64("dsFloatEnd",    0, "% decimation of the floating mesh at the finest level")
var dsTargetStart= flag.Float64("dsTargetStart",90, "% decimation of the target mesh at the coarsest level")
var dsTargetEnd  = flag.Float64("dsTargetEnd",   0, "% decimation of the target mesh at the finest level")

var symmetric  = flag.Int64("symmetric", 1, "1=symmetric push-pull correspondences, 0=one-way")
var neighbours = flag.Int64("neighbours", 5, "number of nearest neighbours for correspondence estimation")
var kappa      = flag.Float64("kappa", 4.0, "robust kernel width for inlier detection, in scale estimates")
var sigma      = flag.Float64("sigma", 3.0, "gaussian smoothing sigma for the viscoelastic transform, in world units")
var smoothNeighbours = flag.Int64("smoothNeighbours", 10, "number of neighbours for gaussian field smoothing")
var viscousStart = flag.Int64("viscousStart", 50, "viscous smoothing passes on the first iteration")
var viscousEnd   = flag.Int64("viscousEnd",    1, "viscous smoothing passes on the last iteration")
var elasticStart = flag.Int64("elasticStart", 50, "elastic smoothing passes on the first iteration")
var elasticEnd   = flag.Int64("elasticEnd",    1, "elastic smoothing passes on the last iteration")
var rigidIterations = flag.Int64("rigidIterations", 20, "rigid iterations, for rigid mode and pyramid preconditioning")
var allowScaling = flag.Int64("allowScaling", 0, "1=estimate a uniform scale during rigid registration, 0=rotation and translation only")

var threads = flag.Int64("threads", int64(runtime.GOMAXPROCS(0)), "maximum number of worker goroutines for k-NN queries and smoothing passes; applying a rigid transform uses GOMAXPROCS")

var chroot = flag.String("chroot", "", "serve: confine process to `path` (requires root)")
var setuid = flag.Int64("setuid", -1, "serve: drop privileges to user `id` (requires root)")

func main() {
	logWriter:=os.Stdout
	debug.SetGCPercent(10)
	start:=time.Now()
	flag.Usage=func(){
	    fmt.Fprintf(logWriter, `Surfreg Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (rigid|nonrigid|pyramid) floating.obj target.obj

Commands:
  rigid    Rigidly register the floating mesh onto the target mesh
  nonrigid Non-rigidly register at a single resolution
  pyramid  Non-rigidly register coarse-to-fine over a resolution pyramid
  serve    Start the REST API server
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
	    flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log=="%auto" {
		if *out!="" {
			*log=strings.TrimSuffix(*out, filepath.Ext(*out))+".log"
		} else {
			*log=""
		}
	}
	if *log!="" {
		err:=nl.LogAlsoToFile(*log)
		if err!=nil { nl.LogFatalf("Unable to open logfile '%s'\n", *log) }
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatalf("Could not create CPU profile: %s\n", err.Error())
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatalf("Could not start CPU profile: %s\n", err.Error())
		}
		defer pprof.StopCPUProfile()
	}

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		return
	}

	switch args[0] {
	case "serve":
		rest.Serve(*chroot, int(*setuid))
		return
	case "legal":
		nl.LogPrintf("%s\n", legal)
		return
	case "version":
		nl.LogPrintf("Version %s\n", version)
		return
	case "help", "?":
		flag.Usage()
		return
	case "rigid", "nonrigid", "pyramid":
	default:
		nl.LogFatalf("Unknown command '%s'\n", args[0])
	}

	if len(args)!=3 {
		nl.LogFatalf("Command %s needs a floating and a target mesh argument\n", args[0])
	}
	nl.LogPrintf("Surfreg v%s on %d-core machine with %d MiB physical memory\n",
		version, runtime.NumCPU(), totalMiBs)

	floating, target:=loadMeshes(args[1], args[2])
	original:=floating.Clone() // kept for the residual heat map

	var err error
	switch args[0] {
	case "rigid":
		opts:=nl.NewRigidOptions()
		opts.NumIterations=int(*rigidIterations)
		opts.Symmetric    =*symmetric!=0
		opts.NumNeighbours=int(*neighbours)
		opts.InlierKappa  =float32(*kappa)
		opts.AllowScaling =*allowScaling!=0
		opts.MaxThreads   =int(*threads)
		if overlayConfig(&opts) { nl.LogPrintf("Applied settings from %s\n", *config) }
		err=nl.RigidRegistration(floating, target, opts)

	case "nonrigid":
		opts:=nonrigidOptionsFromFlags()
		if overlayConfig(&opts) { nl.LogPrintf("Applied settings from %s\n", *config) }
		err=nl.NonrigidRegistration(floating, target, opts)

	case "pyramid":
		opts:=pyramidOptionsFromFlags()
		if overlayConfig(&opts) { nl.LogPrintf("Applied settings from %s\n", *config) }
		err=nl.PyramidRegistration(floating, target, opts)
	}
	if err!=nil { nl.LogFatalf("Error registering: %s\n", err.Error()) }

	if *out!="" {
		if err:=obj.WriteMesh(floating, *out); err!=nil {
			nl.LogFatalf("Error writing '%s': %s\n", *out, err.Error())
		}
		nl.LogPrintf("Wrote registered mesh to %s\n", *out)
	}
	if *residuals!="" {
		if err:=obj.WriteResiduals(floating, original, *residuals); err!=nil {
			nl.LogFatalf("Error writing '%s': %s\n", *residuals, err.Error())
		}
		nl.LogPrintf("Wrote residual heat map to %s\n", *residuals)
	}

	nl.LogPrintf("Done after %v\n", time.Since(start))
	nl.LogSync()

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil { nl.LogFatalf("Could not create memory profile: %s\n", err.Error()) }
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			nl.LogFatalf("Could not write memory profile: %s\n", err.Error())
		}
	}
}

func nonrigidOptionsFromFlags() nl.NonrigidOptions {
	opts:=nl.NewNonrigidOptions()
	opts.NumIterations      =int(*iterations)
	opts.Symmetric          =*symmetric!=0
	opts.NumNeighbours      =int(*neighbours)
	opts.InlierKappa        =float32(*kappa)
	opts.Sigma              =float32(*sigma)
	opts.SmoothingNeighbours=int(*smoothNeighbours)
	opts.ViscousStart, opts.ViscousEnd=int(*viscousStart), int(*viscousEnd)
	opts.ElasticStart, opts.ElasticEnd=int(*elasticStart), int(*elasticEnd)
	opts.MaxThreads         =int(*threads)
	return opts
}

func pyramidOptionsFromFlags() nl.PyramidOptions {
	opts:=nl.NewPyramidOptions()
	opts.NumIterations        =int(*iterations)
	opts.NumPyramidLayers     =int(*layers)
	opts.DownsampleFloatStart =float32(*dsFloatStart)
	opts.DownsampleFloatEnd   =float32(*dsFloatEnd)
	opts.DownsampleTargetStart=float32(*dsTargetStart)
	opts.DownsampleTargetEnd  =float32(*dsTargetEnd)
	opts.Symmetric            =*symmetric!=0
	opts.NumNeighbours        =int(*neighbours)
	opts.InlierKappa          =float32(*kappa)
	opts.Sigma                =float32(*sigma)
	opts.SmoothingNeighbours  =int(*smoothNeighbours)
	opts.ViscousStart, opts.ViscousEnd=int(*viscousStart), int(*viscousEnd)
	opts.ElasticStart, opts.ElasticEnd=int(*elasticStart), int(*elasticEnd)
	opts.RigidIterations      =int(*rigidIterations)
	opts.MaxThreads           =int(*threads)
	return opts
}

// Overlays settings from the YAML config file onto the given options, if selected.
// Returns whether a config file was applied
func overlayConfig(opts interface{}) bool {
	if *config=="" { return false }
	data, err:=os.ReadFile(*config)
	if err!=nil { nl.LogFatalf("Unable to read config '%s': %s\n", *config, err.Error()) }
	if err:=yaml.Unmarshal(data, opts); err!=nil {
		nl.LogFatalf("Unable to parse config '%s': %s\n", *config, err.Error())
	}
	return true
}

// Loads the floating and target meshes and their optional flag sidecar files
func loadMeshes(floatingName, targetName string) (floating, target *nl.Mesh) {
	var err error
	floating, err=obj.ReadMesh(floatingName)
	if err!=nil { nl.LogFatalf("Error reading '%s': %s\n", floatingName, err.Error()) }
	target, err=obj.ReadMesh(targetName)
	if err!=nil { nl.LogFatalf("Error reading '%s': %s\n", targetName, err.Error()) }
	nl.LogPrintf("Floating mesh %s: %d vertices, %d faces\n", floatingName, floating.NumVertices(), floating.NumFaces())
	nl.LogPrintf("Target   mesh %s: %d vertices, %d faces\n", targetName, target.NumVertices(), target.NumFaces())

	if *flagsFloat!="" {
		floating.Flags, err=obj.ReadFlags(*flagsFloat, floating.NumVertices())
		if err!=nil { nl.LogFatalf("Error reading '%s': %s\n", *flagsFloat, err.Error()) }
	}
	if *flagsTarget!="" {
		target.Flags, err=obj.ReadFlags(*flagsTarget, target.NumVertices())
		if err!=nil { nl.LogFatalf("Error reading '%s': %s\n", *flagsTarget, err.Error()) }
	}
	return floating, target
}
