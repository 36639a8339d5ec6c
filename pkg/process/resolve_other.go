//go:build !linux

package process

import "strconv"

func ResolveIdentity(pid int) Identity {
	return Identity{PID: pid, Exe: "pid" + strconv.Itoa(pid)}
}
