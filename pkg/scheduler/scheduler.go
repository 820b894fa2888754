// Package scheduler implements the Scheduler (C7, spec §4.7): a
// handler bound at component.EndpointName(component.OBC) — "the
// Scheduler sits parallel to C6 — it is itself a handler" per spec
// §2 — whose work is to persist future-dated commands and re-inject
// them into the Command Dispatcher at their due time. Grounded on
// ex3_obc_fsw/scheduler/src/main.rs's check_saved_messages /
// process_saved_messages / write_input_tuple_to_rolling_file and its
// ring-eviction tests (test_oldest_file_deletion).
package scheduler

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-co-op/gocron/v2"

	"github.com/ex3-obc/fsw-core/pkg/component"
	"github.com/ex3-obc/fsw-core/pkg/dispatcher"
	"github.com/ex3-obc/fsw-core/pkg/ferr"
	"github.com/ex3-obc/fsw-core/pkg/frame"
	"github.com/ex3-obc/fsw-core/pkg/ipc"
)

// CheckInterval is the periodic worker's wake period (spec §5: "wakes
// every 100 ms").
const CheckInterval = 100 * time.Millisecond

// MaxDirBytes bounds the deferred-commands directory by total file
// size, mirroring the original scheduler.rs's total_size accumulation
// over metadata().len() (spec §4.7, §8 scenario 6: "directory
// byte-count remains <= 2048").
const MaxDirBytes = 2048

// record is the on-disk persistence envelope (spec §9 Open Question,
// resolved in DESIGN.md): CBOR instead of the original's raw two-field
// binary layout, to get a self-describing, versioned format while
// still round-tripping the frame bytes exactly.
type record struct {
	DueEpochMs uint64
	Frame      []byte
}

// DueTimeFromBody extracts the due epoch (spec §3: "first 8 bytes ...
// little-endian epoch in milliseconds") from a scheduler-bound inner
// frame's body.
func DueTimeFromBody(body []byte) (uint64, error) {
	if len(body) < 8 {
		return 0, fmt.Errorf("%w: scheduler body shorter than 8-byte due time", ferr.ErrFrameMalformed)
	}
	return binary.LittleEndian.Uint64(body[:8]), nil
}

// Scheduler owns the deferred-commands directory and the ingress
// endpoint that accepts scheduler-bound frames from the dispatcher.
type Scheduler struct {
	log     *slog.Logger
	dir     string
	ingress *ipc.Endpoint
	toDisp  *ipc.Endpoint // client back to the Command Dispatcher, for re-injection
	clock   func() time.Time
	sched   gocron.Scheduler
	stopCh  chan struct{}
}

// New binds the scheduler's ingress endpoint at
// component.EndpointName(component.OBC) and a client endpoint back to
// the dispatcher for re-injecting due commands. dir holds one file per
// pending record.
func New(log *slog.Logger, prefix, dir string) (*Scheduler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scheduler: create dir %s: %w", dir, err)
	}

	ingress, err := ipc.BindServer(prefix, component.EndpointName(component.OBC))
	if err != nil {
		return nil, fmt.Errorf("scheduler: bind ingress: %w: %w", ferr.ErrConfigFatal, err)
	}

	toDisp, err := ipc.ConnectClient(prefix, dispatcher.IngressName)
	if err != nil {
		ingress.Close()
		return nil, fmt.Errorf("scheduler: connect dispatcher: %w: %w", ferr.ErrConfigFatal, err)
	}

	gs, err := gocron.NewScheduler()
	if err != nil {
		ingress.Close()
		toDisp.Close()
		return nil, fmt.Errorf("scheduler: create worker: %w", err)
	}

	return &Scheduler{
		log:     log,
		dir:     dir,
		ingress: ingress,
		toDisp:  toDisp,
		clock:   time.Now,
		sched:   gs,
		stopCh:  make(chan struct{}),
	}, nil
}

// Stop signals Run to return after its current poll cycle and stops
// the periodic worker.
func (s *Scheduler) Stop() { close(s.stopCh) }

// Run starts the 100ms periodic worker (spec §5: "spawns one worker
// task ... wakes every 100ms") and services the ingress endpoint until
// ctx is canceled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(CheckInterval),
		gocron.NewTask(func() {
			if err := s.checkSaved(); err != nil {
				s.log.Warn("scheduler: check saved messages failed", "err", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("scheduler: schedule worker: %w", err)
	}
	s.sched.Start()
	defer s.sched.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		default:
		}

		ready, err := ipc.Poll(CheckInterval, s.ingress)
		if err != nil {
			return fmt.Errorf("scheduler: poll: %w", err)
		}
		if len(ready) == 0 {
			continue
		}

		if err := s.service(s.ingress.ReadAndClear()); err != nil {
			s.log.Warn("scheduler: service failed", "err", err)
		}
	}
}

// service handles one inbound frame: its body carries the nested
// scheduler-bound frame (spec §4.7: "inbound frames carry a nested
// frame in the body").
func (s *Scheduler) service(buf []byte) error {
	outer, err := frame.Deserialize(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ferr.ErrFrameMalformed, err)
	}

	inner, err := frame.Deserialize(outer.Body)
	if err != nil {
		return fmt.Errorf("%w: nested frame: %w", ferr.ErrFrameMalformed, err)
	}

	due, err := DueTimeFromBody(inner.Body)
	if err != nil {
		return err
	}

	now := uint64(s.clock().UnixMilli())
	if due <= now {
		return s.reinject(inner)
	}
	return s.persist(due, outer.Body)
}

// reinject forwards the nested frame's raw bytes to the dispatcher
// immediately (spec §4.7: "if the time is ≤ now, the nested command is
// re-injected into the dispatcher immediately").
func (s *Scheduler) reinject(inner frame.Frame) error {
	wire, err := frame.Serialize(inner)
	if err != nil {
		return fmt.Errorf("scheduler: serialize re-injected frame: %w", err)
	}
	if _, err := s.toDisp.Send(wire); err != nil {
		return fmt.Errorf("%w: re-inject to dispatcher: %w", ferr.ErrIPCFatal, err)
	}
	return nil
}

// persist writes one CBOR-encoded record file named by due epoch,
// evicting the oldest record first if the directory is at capacity
// (spec §3: "on overflow the oldest (by mtime) file is evicted before
// writing a new one").
func (s *Scheduler) persist(due uint64, innerFrameBytes []byte) error {
	rec := record{DueEpochMs: due, Frame: innerFrameBytes}
	encoded, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("scheduler: encode record: %w", err)
	}

	if err := s.evictIfFull(len(encoded)); err != nil {
		return err
	}

	path := recordPath(s.dir, due)
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("scheduler: write record %s: %w", path, err)
	}
	return nil
}

func recordPath(dir string, due uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.cbor", due))
}

// evictIfFull sums the directory's current byte total and removes the
// oldest-by-mtime record, repeatedly, until adding a newSize-byte
// record would keep the total within MaxDirBytes, emitting
// ErrPersistFull as an informational log for each eviction (spec §7:
// "recovery is automatic ... informational log ... no ack
// degradation").
func (s *Scheduler) evictIfFull(newSize int) error {
	for {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return fmt.Errorf("scheduler: list %s: %w", s.dir, err)
		}

		type aged struct {
			name string
			mod  time.Time
		}
		aged_ := make([]aged, 0, len(entries))
		var total int64
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			aged_ = append(aged_, aged{name: e.Name(), mod: info.ModTime()})
			total += info.Size()
		}

		if total+int64(newSize) <= MaxDirBytes || len(aged_) == 0 {
			return nil
		}

		sort.Slice(aged_, func(i, j int) bool { return aged_[i].mod.Before(aged_[j].mod) })

		oldest := filepath.Join(s.dir, aged_[0].name)
		if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("scheduler: evict %s: %w", oldest, err)
		}
		s.log.Info("scheduler: ring evicted oldest record", "file", oldest, "err", ferr.ErrPersistFull)
	}
}

// checkSaved scans the directory for due records, re-injects each,
// and removes its file (spec §4.7 periodic worker).
func (s *Scheduler) checkSaved() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scheduler: list %s: %w", s.dir, err)
	}

	now := uint64(s.clock().UnixMilli())
	for _, e := range entries {
		path := filepath.Join(s.dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var rec record
		if err := cbor.Unmarshal(raw, &rec); err != nil {
			s.log.Warn("scheduler: skipping unreadable record", "file", path, "err", err)
			continue
		}
		if rec.DueEpochMs > now {
			continue
		}

		inner, err := frame.Deserialize(rec.Frame)
		if err != nil {
			s.log.Warn("scheduler: skipping malformed record", "file", path, "err", err)
			os.Remove(path)
			continue
		}
		if err := s.reinject(inner); err != nil {
			s.log.Warn("scheduler: re-inject failed, record retained for next check", "file", path, "err", err)
			continue
		}
		os.Remove(path)
	}
	return nil
}

// Close releases both IPC endpoints.
func (s *Scheduler) Close() error {
	err := s.ingress.Close()
	if dErr := s.toDisp.Close(); dErr != nil && err == nil {
		err = dErr
	}
	return err
}
