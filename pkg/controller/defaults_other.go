//go:build !linux

package controller

func platformDefaults(*Controller) {}
