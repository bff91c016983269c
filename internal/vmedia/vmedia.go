// Package vmedia prepares the virtual media device for a firmware update
// run - it swaps the SPP ISO into the BMC virtual media slot and resolves
// the block device the host OS enumerates for it.
package vmedia

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/bmc"
)

const (
	// SlotCDROM is the virtual media slot addressed for the update ISO.
	SlotCDROM = "CD"
)

var (
	errImageRef       = errors.New("image reference validation error")
	errDeviceDiscover = errors.New("virtual media device not found")
	errChecksumVerify = errors.New("virtual media device checksum verification error")
)

// Preparer attaches the update ISO over BMC virtual media and returns a
// validated block device path.
type Preparer struct {
	client bmc.VirtualMedia
	logger *logrus.Entry

	// byLabelDir is the directory the OS publishes device labels in,
	// /dev/disk/by-label on linux hosts.
	byLabelDir string

	// labelPattern is the wildcard matching the volume label of the ISO.
	labelPattern string

	// settle poll bounds for device enumeration after media insert
	settleTimeout  time.Duration
	settleInterval time.Duration
}

// Option overrides Preparer defaults.
type Option func(*Preparer)

func WithSettleBounds(timeout, interval time.Duration) Option {
	return func(p *Preparer) {
		p.settleTimeout = timeout
		p.settleInterval = interval
	}
}

func NewPreparer(client bmc.VirtualMedia, byLabelDir, labelPattern string, logger *logrus.Entry, opts ...Option) *Preparer {
	p := &Preparer{
		client:       client,
		logger:       logger,
		byLabelDir:   byLabelDir,
		labelPattern: labelPattern,

		// nolint:gomnd // poll bounds cover the several seconds the OS takes to enumerate the device.
		settleTimeout:  30 * time.Second,
		settleInterval: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Prepare runs the media preparation sequence and returns the device path
// for the attached ISO.
//
// The sequence is linear - validate the image reference, swap the virtual
// media on the CDROM slot, wait for the OS to enumerate the device, verify
// the device contents against the expected checksum. BMC errors propagate
// unchanged, every other failure is wrapped in this package's errors.
func (p *Preparer) Prepare(ctx context.Context, imageURL, checksum string) (string, error) {
	if err := ValidateImageRef(ctx, imageURL); err != nil {
		return "", errors.Wrap(errImageRef, err.Error())
	}

	if err := p.client.Open(ctx); err != nil {
		return "", err
	}

	// eject whatever occupies the slot before inserting the update ISO
	if err := p.client.EjectVirtualMedia(ctx, SlotCDROM); err != nil {
		return "", err
	}

	if err := p.client.InsertVirtualMedia(ctx, SlotCDROM, imageURL); err != nil {
		return "", err
	}

	device, err := p.discoverDevice(ctx)
	if err != nil {
		return "", err
	}

	p.logger.WithFields(logrus.Fields{"device": device}).Info("virtual media device discovered")

	if err := VerifyChecksum(device, checksum); err != nil {
		return "", errors.Wrap(errChecksumVerify, err.Error())
	}

	return device, nil
}

// discoverDevice polls the by-label directory until an entry matching the
// label pattern shows up or the settle timeout lapses.
//
// The device label is published a few seconds after the media insert, once
// the host OS has enumerated the attached device.
func (p *Preparer) discoverDevice(ctx context.Context) (string, error) {
	delay := &backoff.Backoff{
		Min:    p.settleInterval,
		Max:    p.settleTimeout,
		Factor: 2,
		Jitter: false,
	}

	deadline := time.Now().Add(p.settleTimeout)

	for {
		matches, err := filepath.Glob(filepath.Join(p.byLabelDir, p.labelPattern))
		if err != nil {
			return "", errors.Wrap(errDeviceDiscover, err.Error())
		}

		for _, match := range matches {
			if _, err := os.Stat(match); err == nil {
				return match, nil
			}
		}

		if time.Now().After(deadline) {
			return "", errors.Wrapf(
				errDeviceDiscover,
				"no device labeled %s under %s within %s",
				p.labelPattern,
				p.byLabelDir,
				p.settleTimeout.String(),
			)
		}

		select {
		case <-ctx.Done():
			return "", errors.Wrap(errDeviceDiscover, ctx.Err().Error())
		case <-time.After(delay.Duration()):
		}
	}
}
