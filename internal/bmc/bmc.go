package bmc

import (
	"context"
	"fmt"
	"strings"
	"time"

	bmclibv2 "github.com/bmc-toolbox/bmclib/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/model"
)

var (
	logoutTimeout = 1 * time.Minute
	loginTimeout  = 30 * time.Second
	loginAttempts = 3

	// login errors
	errBMCLogin             = errors.New("bmc login error")
	errBMCLoginTimeout      = errors.New("bmc login timeout")
	errBMCLoginUnAuthorized = errors.New("bmc login unauthorized")
	errBMCSession           = errors.New("bmc session error")

	errBMCLogout = errors.New("bmc logout error")

	errBMCVirtualMedia = errors.New("bmc virtual media error")
)

// VirtualMedia interface defines the BMC virtual media operations
// required to swap the update ISO in and out of a media slot.
type VirtualMedia interface {
	// Open logs into the BMC.
	Open(ctx context.Context) error

	// Close logs out of the BMC, note no context is passed to this method
	// to allow it to continue to log out when the parent context has been cancelled.
	Close() error

	// EjectVirtualMedia ejects whatever media is attached to the given slot.
	EjectVirtualMedia(ctx context.Context, kind string) error

	// InsertVirtualMedia attaches the image at imageURL to the given slot.
	InsertVirtualMedia(ctx context.Context, kind, imageURL string) error
}

// bmc wraps the bmclib client and implements the VirtualMedia interface
type bmc struct {
	client *bmclibv2.Client
	logger *logrus.Entry
}

// NewVirtualMedia returns a virtual media client for the BMC on the server in the update request.
func NewVirtualMedia(ctx context.Context, request *model.UpdateRequest, logger *logrus.Entry) VirtualMedia {
	return &bmc{
		client: newBmclibv2Client(ctx, request, logger),
		logger: logger,
	}
}

// Open creates a BMC session
func (b *bmc) Open(ctx context.Context) error {
	if b.client == nil {
		return errors.Wrap(errBMCLogin, "bmclibv2 client not initialized")
	}

	return b.loginWithRetries(ctx, loginAttempts)
}

// Close logs out of the BMC
func (b *bmc) Close() error {
	if b.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()

	if err := b.client.Close(ctx); err != nil {
		return errors.Wrap(errBMCLogout, err.Error())
	}

	b.client = nil

	return nil
}

// EjectVirtualMedia ejects media from the given slot, bmclib treats an
// empty media URL as an eject request.
func (b *bmc) EjectVirtualMedia(ctx context.Context, kind string) error {
	ok, err := b.client.SetVirtualMedia(ctx, kind, "")
	if err != nil {
		return errors.Wrap(errBMCVirtualMedia, "eject: "+err.Error())
	}

	if !ok {
		return errors.Wrap(errBMCVirtualMedia, "eject unsuccessful on slot: "+kind)
	}

	b.logger.WithFields(logrus.Fields{"slot": kind}).Debug("virtual media ejected")

	return nil
}

// InsertVirtualMedia attaches the image to the given slot.
func (b *bmc) InsertVirtualMedia(ctx context.Context, kind, imageURL string) error {
	ok, err := b.client.SetVirtualMedia(ctx, kind, imageURL)
	if err != nil {
		return errors.Wrap(errBMCVirtualMedia, "insert: "+err.Error())
	}

	if !ok {
		return errors.Wrap(errBMCVirtualMedia, "insert unsuccessful on slot: "+kind)
	}

	b.logger.WithFields(logrus.Fields{"slot": kind, "image": imageURL}).Debug("virtual media inserted")

	return nil
}

func (b *bmc) sessionActive(ctx context.Context) error {
	if b.client == nil {
		return errors.Wrap(errBMCSession, "bmclibv2 client not initialized")
	}

	// check if we're able to query the power state
	powerStatus, err := b.client.GetPowerState(ctx)
	if err != nil {
		b.logger.WithFields(
			logrus.Fields{
				"err": err.Error(),
			},
		).Trace("session not active, checked with GetPowerState()")

		return errors.Wrap(errBMCSession, err.Error())
	}

	b.logger.WithFields(
		logrus.Fields{
			"powerStatus": powerStatus,
		},
	).Trace("session currently active, checked with GetPowerState()")

	return nil
}

// login to the BMC, re-trying tries times with exponential backoff
//
// if a session is found to be active, a bmc query is made to validate the session
// check and the login attempt is ignored.
func (b *bmc) loginWithRetries(ctx context.Context, tries int) error {
	attempts := 1

	// nolint:gomnd // time duration definitions are clear as is.
	delay := &backoff.Backoff{
		Min:    5 * time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	if tries == 0 {
		tries = loginAttempts
	}

	// loop returns when a session was established or after tries attempts
	for {
		attemptstr := fmt.Sprintf("%d/%d", attempts, tries)
		attemptCtx, cancel := context.WithTimeout(ctx, loginTimeout)
		// nolint:gocritic // deferInLoop - loop is bounded
		defer cancel()

		// if a session is active, skip login attempt
		if err := b.sessionActive(attemptCtx); err == nil {
			return nil
		}

		// attempt login
		err := b.client.Open(attemptCtx)
		if err != nil {
			b.logger.WithFields(
				logrus.Fields{
					"attempt": attemptstr,
					"err":     err,
				}).Debug("bmc login error")

			// return if attempts match tries
			if attempts >= tries {
				if strings.Contains(err.Error(), "operation timed out") {
					err = multierror.Append(errBMCLoginTimeout, err)
				}

				if strings.Contains(err.Error(), "401: ") || strings.Contains(err.Error(), "failed to login") {
					err = multierror.Append(errBMCLoginUnAuthorized, err)
				}

				return errors.Wrapf(errBMCLogin, "attempts: %s, last error: %s", attemptstr, err.Error())
			}

			attempts++

			time.Sleep(delay.Duration())

			continue
		}

		b.logger.WithField("attempt", attemptstr).Debug("bmc login successful")

		return nil
	}
}
