package inference

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// hdf5Signature is the 8-byte superblock signature at the start of an HDF5 file.
var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var ErrNotHDF5 = errors.New("inference: parameter file is not HDF5")

// Parameters identify a loaded weight file.
type Parameters struct {
	Path   string
	Size   int64
	SHA256 string
}

// ReadParameters validates the weight file at path and fingerprints it.
func ReadParameters(path string) (*Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(hdf5Signature))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotHDF5, path, err)
	}
	if !bytes.Equal(header, hdf5Signature) {
		return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
	}

	hash := sha256.New()
	hash.Write(header)
	n, err := io.Copy(hash, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file %s: %w", path, err)
	}

	return &Parameters{
		Path:   path,
		Size:   n + int64(len(header)),
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}
