package vmedia

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

var (
	errChecksum       = errors.New("error validating device checksum")
	errChecksumFormat = errors.New("bad checksum format")
)

// VerifyChecksum compares the checksum of the device contents against the
// expected value.
//
// The digest type is carried as a checksum prefix - md5sum: or sha256: -
// md5 is assumed when no prefix is present.
func VerifyChecksum(devicePath, checksum string) error {
	// no checksum prefix, default to md5sum
	if !strings.Contains(checksum, ":") {
		return verifyChecksum(devicePath, checksum, md5.New())
	}

	parts := strings.Split(checksum, ":")
	if len(parts) != 2 {
		return errors.Wrap(errChecksumFormat, "invalid checksum: "+checksum)
	}

	switch parts[0] {
	case "md5sum":
		return verifyChecksum(devicePath, parts[1], md5.New())
	case "sha256":
		return verifyChecksum(devicePath, parts[1], sha256.New())
	default:
		return errors.Wrap(errChecksumFormat, "unsupported digest: "+parts[0])
	}
}

func verifyChecksum(devicePath, checksum string, h hash.Hash) error {
	if devicePath == "" {
		return errors.Wrap(errChecksum, "expected a device path to validate checksum")
	}

	f, err := os.Open(devicePath)
	if err != nil {
		return errors.Wrap(errChecksum, err.Error()+" "+devicePath)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrap(errChecksum, err.Error())
	}

	calculated := fmt.Sprintf("%x", h.Sum(nil))
	if calculated != checksum {
		return errors.Wrapf(
			errChecksum,
			"device: %s expected: %s, got: %s",
			devicePath,
			checksum,
			calculated,
		)
	}

	return nil
}
