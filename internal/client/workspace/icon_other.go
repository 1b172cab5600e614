//go:build !darwin

package workspace

// setFolderIcon is a no-op outside macOS.
func setFolderIcon(dirPath string) error {
	return nil
}
