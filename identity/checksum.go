package identity

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// ChecksumOf returns the hex MD5 of the stream, the content hash clients send as `md5`.
func ChecksumOf(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ChecksumOfFile ...
func ChecksumOfFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close() //nolint:errcheck

	return ChecksumOf(file)
}
