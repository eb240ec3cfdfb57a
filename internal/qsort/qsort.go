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


// Partial sorting on float32 residual buffers.
package qsort

// Select median of an array of float32. Partially reorders the array.
// Array must not contain IEEE NaN
func QSelectMedianFloat32(a []float32) float32 {
	return QSelectFloat32(a, (len(a)>>1)+1)
}

// Select kth lowest element from an array of float32 by iteratively narrowing
// the partition that contains it. Partially reorders the array.
// Array must not contain IEEE NaN
func QSelectFloat32(a []float32, k int) float32 {
	lo, hi, want:=0, len(a)-1, k-1
	for lo<hi {
		p:=partitionFloat32(a, lo, hi)
		if p==want { return a[p] }
		if p<want {
			lo=p+1
		} else {
			hi=p-1
		}
	}
	return a[want]
}

// Partitions a[lo:hi+1] around the median of its first, middle and last element,
// placing smaller values left of the returned pivot position and larger ones right
func partitionFloat32(a []float32, lo, hi int) int {
	mid:=lo+(hi-lo)>>1
	if a[mid]<a[lo] { a[mid], a[lo] = a[lo], a[mid] }
	if a[hi] <a[lo] { a[hi],  a[lo] = a[lo], a[hi]  }
	if a[hi] <a[mid]{ a[hi],  a[mid]= a[mid],a[hi]  }
	a[mid], a[hi] = a[hi], a[mid] // park the pivot at the end

	pivot:=a[hi]
	next:=lo
	for i:=lo; i<hi; i++ {
		if a[i]<pivot {
			a[i], a[next] = a[next], a[i]
			next++
		}
	}
	a[next], a[hi] = a[hi], a[next]
	return next
}
