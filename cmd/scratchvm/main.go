package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lfmoo/scratchvm/builtins"
	"github.com/lfmoo/scratchvm/scheduler"
	"github.com/lfmoo/scratchvm/sb3"
	"github.com/lfmoo/scratchvm/trace"
	"github.com/lfmoo/scratchvm/types"
	"github.com/lfmoo/scratchvm/vm"
)

func main() {
	workers := flag.Int("workers", 1, "number of worker goroutines for script compilation")
	traceEnabled := flag.Bool("trace", false, "enable execution tracing")
	traceFilter := flag.String("trace-filter", "", "trace filter pattern (glob, comma-separated, e.g. 'loop_*,main')")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: scratchvm [-workers N] [-trace] [-trace-filter pattern] <project.json>")
		os.Exit(2)
	}

	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			filters = strings.Split(*traceFilter, ",")
			for i := range filters {
				filters[i] = strings.TrimSpace(filters[i])
			}
		}
		trace.Init(true, filters, os.Stderr)
		log.Printf("tracing enabled (filters: %v)", filters)
	} else {
		trace.Init(false, nil, nil)
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("reading %s: %v", args[0], err)
	}

	proj, err := sb3.Parse(raw)
	if err != nil {
		exitWithKind(err)
	}

	lib := vm.NewBlockLibrary()
	vm.RegisterSeed(lib)
	builtins.RegisterSeed(lib)

	prog, err := vm.CompileProject(proj, lib, *workers)
	if err != nil {
		exitWithKind(err)
	}

	sched := scheduler.New(prog, nil)
	sched.Dispatch(vm.StartTrigger())
	sched.Run()
}

// exitWithKind logs err, prefixed with its Kind when it has one, and exits
// nonzero (spec.md §6/§7). Parse errors and compile errors share the same
// exit code and differ only in the logged message.
func exitWithKind(err error) {
	var kinded interface{ Kind() types.ErrorKind }
	if errors.As(err, &kinded) {
		log.Fatalf("[%s] %v", kinded.Kind(), err)
	}
	log.Fatalf("%v", err)
}
