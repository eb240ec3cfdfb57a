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
	"runtime"
)

// Runs fn over the index range [0,n) in contiguous chunks, with up to maxThreads
// goroutines limited via a channel. Each chunk writes disjoint output rows, so no
// locking is needed. maxThreads<=0 selects runtime.GOMAXPROCS(0)
func parallelOver(n, maxThreads int, fn func(lo, hi int)) {
	if maxThreads<=0 { maxThreads=runtime.GOMAXPROCS(0) }
	if maxThreads>n  { maxThreads=n }
	if maxThreads<=1 {
		fn(0, n)
		return
	}

	limiter:=make(chan bool, maxThreads)
	chunk:=(n+maxThreads-1)/maxThreads
	for lo:=0; lo<n; lo+=chunk {
		hi:=lo+chunk
		if hi>n { hi=n }
		limiter <- true
		go func(lo, hi int) {
			defer func() { <-limiter }()
			fn(lo, hi)
		}(lo, hi)
	}
	for i:=0; i<cap(limiter); i++ {  // wait for goroutines to finish
		limiter <- true
	}
}
