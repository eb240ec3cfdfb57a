//go:build linux || darwin

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


package rest

import (
	"os"
	"syscall"
	"github.com/pkg/errors"
)

// Confines the serving process to a chroot jail and drops to an unprivileged
// user id, since request handlers open server-local mesh files. Both steps
// require root; an empty chroot and a negative setuid skip the respective step
func MakeSandbox(chroot string, setuid int) error {
	if chroot!="" {
		if err:=syscall.Chroot(chroot); err!=nil {
			return errors.Wrapf(err, "chroot to %s", chroot)
		}
		if err:=os.Chdir("/"); err!=nil {
			return errors.Wrap(err, "entering chroot")
		}
	}
	if setuid>=0 {
		if err:=syscall.Setuid(setuid); err!=nil {
			return errors.Wrapf(err, "setuid %d", setuid)
		}
	}
	return nil
}
