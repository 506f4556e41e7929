// Package host runs a robot on a Linux board.
package host

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"
)

// Files kept in the firmware directory.
const (
	ImageFile   = "firmware.bin"
	UpdateFile  = "firmware.new"
	PendingFile = "firmware.pending"
	TrialFile   = "firmware.trial"
)

// FirmwareStore implements robot.Firmware on a directory. A marked update
// is installed by Boot, which runs when the process starts.
type FirmwareStore struct {
	Dir string
	// Restart reboots the board.
	Restart func() error

	lock    sync.Mutex
	update  *os.File
	swapped bool
}

// NewFirmwareStore creates the store on dir.
func NewFirmwareStore(dir string, restart func() error) *FirmwareStore {
	return &FirmwareStore{Dir: dir, Restart: restart}
}

func (s *FirmwareStore) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Boot installs an update marked before the last reboot. An image on trial
// which was never confirmed is kept, as there is no older image to return
// to.
func (s *FirmwareStore) Boot() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	if _, err := os.Stat(s.path(PendingFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.Rename(s.path(UpdateFile), s.path(ImageFile)); err != nil {
		return fmt.Errorf("install update: %w", err)
	}
	if err := os.Rename(s.path(PendingFile), s.path(TrialFile)); err != nil {
		return err
	}
	s.swapped = true
	glog.Infof("firmware update installed from %s", s.Dir)
	return nil
}

// PrepareUpdate implements robot.Firmware.
func (s *FirmwareStore) PrepareUpdate(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closeUpdate()
	os.Remove(s.path(PendingFile))
	f, err := os.OpenFile(s.path(UpdateFile), os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	s.update = f
	return nil
}

// WriteFirmware implements robot.Firmware.
func (s *FirmwareStore) WriteFirmware(ctx context.Context, offset int, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.update == nil {
		return errors.New("no update prepared")
	}
	_, err := s.update.WriteAt(data, int64(offset))
	return err
}

// FirmwareHash implements robot.Firmware.
func (s *FirmwareStore) FirmwareHash(ctx context.Context, length int) (hash [32]byte, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.update == nil {
		return hash, errors.New("no update prepared")
	}
	h := sha256.New()
	n, err := io.Copy(h, io.NewSectionReader(s.update, 0, int64(length)))
	if err != nil {
		return hash, err
	}
	if n != int64(length) {
		return hash, fmt.Errorf("hash of %d bytes beyond image of %d bytes", length, n)
	}
	copy(hash[:], h.Sum(nil))
	return hash, nil
}

// MarkUpdated implements robot.Firmware.
func (s *FirmwareStore) MarkUpdated(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.update == nil {
		return errors.New("no update prepared")
	}
	if err := s.update.Sync(); err != nil {
		return err
	}
	s.closeUpdate()
	return os.WriteFile(s.path(PendingFile), nil, 0644)
}

// IsSwapped implements robot.Firmware.
func (s *FirmwareStore) IsSwapped(context.Context) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.swapped, nil
}

// MarkBooted implements robot.Firmware.
func (s *FirmwareStore) MarkBooted(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := os.Remove(s.path(TrialFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CancelUpdate implements robot.Firmware.
func (s *FirmwareStore) CancelUpdate(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closeUpdate()
	for _, name := range []string{PendingFile, UpdateFile} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Reboot implements robot.Firmware.
func (s *FirmwareStore) Reboot(context.Context) error {
	glog.Infof("rebooting")
	if s.Restart == nil {
		return errors.New("reboot not supported")
	}
	return s.Restart()
}

func (s *FirmwareStore) closeUpdate() {
	if s.update != nil {
		s.update.Close()
		s.update = nil
	}
}
