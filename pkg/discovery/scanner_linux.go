//go:build linux

package discovery

import "github.com/ja7ad/procwatch/pkg/system/proc"

// ProcScanner enumerates /proc.
func ProcScanner() *Scanner { return NewScanner(proc.ListPIDs) }
