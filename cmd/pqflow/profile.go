package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

type profiler struct {
	cpu     *os.File
	memFile string
}

func startProfiler(cpuFile, memFile string) (*profiler, error) {
	p := &profiler{memFile: memFile}
	if cpuFile == "" {
		return p, nil
	}

	f, err := os.Create(cpuFile) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create CPU profile").
			WithDetail("path", cpuFile)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to start CPU profile")
	}
	p.cpu = f
	return p, nil
}

func (p *profiler) stop() error {
	if p.cpu != nil {
		pprof.StopCPUProfile()
		if err := p.cpu.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to close CPU profile")
		}
	}
	if p.memFile == "" {
		return nil
	}

	f, err := os.Create(p.memFile) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create memory profile").
			WithDetail("path", p.memFile)
	}
	defer f.Close()

	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write memory profile")
	}
	return nil
}
