package scheduler

import (
	"container/heap"
	"log"
	"time"

	"github.com/lfmoo/scratchvm/vm"
)

// Scheduler is the single-threaded cooperative frame loop (SPEC_FULL §5):
// ready tasks run to their next yield point; suspended tasks wait on a
// wake-time min-heap until due.
type Scheduler struct {
	Program *vm.Program
	Clock   Clock

	ready   []*vm.Task
	sleeper *sleeperQueue
}

func New(prog *vm.Program, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{Program: prog, Clock: clock, sleeper: newSleeperQueue()}
}

// Dispatch enqueues a fresh Task for each procedure bound to trigger, in
// registration order (§4.4, §4.7). Call with vm.StartTrigger() before Run
// to seed the green-flag scripts.
func (s *Scheduler) Dispatch(trigger vm.Trigger) {
	for _, handle := range s.Program.Dispatch(trigger) {
		proc := s.Program.Procedure(handle)
		s.ready = append(s.ready, vm.NewTask(proc.TargetID, proc, handle))
	}
}

// Run drains the ready queue and sleeper heap to exhaustion (§5 frame loop).
// It returns once no task remains ready or sleeping. Task-level VMErrors are
// logged and the offending Task is discarded; other tasks continue (§7
// propagation).
func (s *Scheduler) Run() {
	for {
		if len(s.ready) == 0 {
			if s.sleeper.Len() == 0 {
				return
			}
			now := s.Clock.Now()
			if wake := s.sleeper.Peek().WakeTime; wake.After(now) {
				s.Clock.Sleep(wake.Sub(now))
			}
		}

		now := s.Clock.Now()
		for s.sleeper.Len() > 0 && !s.sleeper.Peek().WakeTime.After(now) {
			s.ready = append(s.ready, heap.Pop(s.sleeper).(*vm.Task))
		}
		if len(s.ready) == 0 {
			continue // nothing due yet; re-measure now and wait again
		}

		s.runFrame()
	}
}

// runFrame drains the ready queue once, assigning each popped task a
// frame-unique wake-time stamp before running it (§5 step 3: "a strictly
// increasing counter seeded at frame_start"), so tasks that land back in
// the sleeper heap this frame are ordered fairly relative to one another.
func (s *Scheduler) runFrame() {
	frameStart := s.Clock.Now()
	counter := 0

	for len(s.ready) > 0 {
		t := s.ready[0]
		s.ready = s.ready[1:]

		t.WakeTime = frameStart.Add(time.Duration(counter))
		counter++

		outcome, err := vm.RunUntilYield(s.Program, t)
		if err != nil {
			log.Printf("scheduler: task on proc %s aborted: %v", s.Program.Procedure(t.Proc).Name, err)
			continue
		}
		if t.Complete {
			continue
		}
		if outcome.Slept {
			t.WakeTime = s.Clock.Now().Add(outcome.SleepFor)
		}
		heap.Push(s.sleeper, t)

		for _, handle := range outcome.Dispatched {
			proc := s.Program.Procedure(handle)
			s.ready = append(s.ready, vm.NewTask(proc.TargetID, proc, handle))
		}
	}
}
