//go:build !unix

package clients

// lockFile only has the in-process mutex to rely on where flock is unavailable
func lockFile(path string) (func(), error) {
	return func() {}, nil
}
