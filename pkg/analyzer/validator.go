package analyzer

import "os"

// FileValidator accepts references that name an existing regular file.
type FileValidator struct{}

// Exists reports whether path is an existing regular file.
func (FileValidator) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
