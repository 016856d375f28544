// Package persist serializes the mission-critical fields to non-volatile
// storage behind a magic byte and CRC32 trailer. The record is read once at
// boot and rewritten after every state-affecting event, so antenna deployment
// is never re-attempted after a reboot.
package persist

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/edsonpavoni/orbitalTemple/internal/integrity"
	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// Record layout, fixed offsets. Bytes 11..99 are reserved for collaborator
// flags so the CRC offset stays stable across firmware revisions.
const (
	Magic = 0xAB

	offMagic        = 0
	offMissionState = 1
	offBootCount    = 2 // uint32 LE
	offDeployed     = 6
	offMissionStart = 7 // uint32 LE, unix seconds
	crcOffset       = 100
	recordSize      = crcOffset + 4
)

// State holds the fields that must survive a power cycle.
type State struct {
	MissionState    uint8
	BootCount       uint32
	AntennaDeployed bool
	MissionStart    uint32 // unix seconds of first boot
}

// Store reads and writes the CRC-protected record.
type Store struct {
	storage Storage
	log     logging.Logger
}

// NewStore wraps the given storage.
func NewStore(storage Storage, log logging.Logger) *Store {
	if log == nil {
		log = logging.Noop()
	}
	return &Store{storage: storage, log: logging.Subsystem(log, "persist")}
}

// Save serializes st and commits it with the CRC trailer. Best-effort: the
// caller logs failures but never treats them as fatal.
func (s *Store) Save(ctx context.Context, st State) error {
	buf := make([]byte, recordSize)
	buf[offMagic] = Magic
	buf[offMissionState] = st.MissionState
	binary.LittleEndian.PutUint32(buf[offBootCount:], st.BootCount)
	if st.AntennaDeployed {
		buf[offDeployed] = 1
	}
	binary.LittleEndian.PutUint32(buf[offMissionStart:], st.MissionStart)

	crc := integrity.Checksum(buf[:crcOffset])
	binary.LittleEndian.PutUint32(buf[crcOffset:], crc)

	if err := s.storage.Commit(buf); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	s.log.Debug(ctx, "state saved",
		logging.Uint32("boot_count", st.BootCount),
		logging.Bool("deployed", st.AntennaDeployed))
	return nil
}

// Load reads the record back. ok is false when there is no usable record:
// missing storage, wrong magic, short record, or CRC mismatch all present
// identically as "no data". Corruption is never partially trusted.
func (s *Store) Load(ctx context.Context) (st State, ok bool) {
	buf, err := s.storage.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "storage read failed", logging.String("error", err.Error()))
		}
		return State{}, false
	}
	if len(buf) < recordSize || buf[offMagic] != Magic {
		s.log.Info(ctx, "no valid record (first boot)")
		return State{}, false
	}
	stored := binary.LittleEndian.Uint32(buf[crcOffset:])
	if !integrity.Verify(buf[:crcOffset], stored) {
		s.log.Warn(ctx, "record CRC mismatch, treating as no data",
			logging.Uint32("stored_crc", stored),
			logging.Uint32("computed_crc", integrity.Checksum(buf[:crcOffset])))
		return State{}, false
	}

	st.MissionState = buf[offMissionState]
	st.BootCount = binary.LittleEndian.Uint32(buf[offBootCount:])
	st.AntennaDeployed = buf[offDeployed] == 1
	st.MissionStart = binary.LittleEndian.Uint32(buf[offMissionStart:])
	return st, true
}

// Boot applies the boot-count policy: a valid prior record increments its
// counter, anything else starts the mission at boot #1. The returned restored
// flag tells the caller whether the rest of the record is trustworthy.
func (s *Store) Boot(ctx context.Context, nowUnix uint32) (st State, restored bool) {
	st, restored = s.Load(ctx)
	if restored {
		st.BootCount++
		return st, true
	}
	return State{BootCount: 1, MissionStart: nowUnix}, false
}
