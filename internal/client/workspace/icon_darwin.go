//go:build darwin

package workspace

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"

	"github.com/openmined/syftbox-client/internal/utils"
)

//go:embed icon.icns
var syftboxIcon []byte

func setFolderIcon(dirPath string) error {
	targetDir, err := utils.ResolvePath(dirPath)
	if err != nil {
		return fmt.Errorf("set folder icon: resolve dir %q: %w", dirPath, err)
	}

	if !utils.DirExists(targetDir) {
		return fmt.Errorf("set folder icon: dir does not exist: %s", targetDir)
	}

	iconFile, err := os.CreateTemp("", "workspace.icns")
	if err != nil {
		return fmt.Errorf("set folder icon: create temp file: %w", err)
	}
	defer os.Remove(iconFile.Name())

	if _, err := iconFile.Write(syftboxIcon); err != nil {
		return fmt.Errorf("set folder icon: write icon: %w", err)
	}
	iconFile.Close()

	// approach from https://github.com/mklement0/fileicon/blob/master/bin/fileicon
	appleScript := fmt.Sprintf(`
    use framework "Cocoa"

    set sourcePath to "%s"
    set destPath to "%s"

    set imageData to (current application's NSImage's alloc()'s initWithContentsOfFile:sourcePath)
    (current application's NSWorkspace's sharedWorkspace()'s setIcon:imageData forFile:destPath options:2)
	`, iconFile.Name(), targetDir)

	cmd := exec.Command("osascript", "-e", appleScript)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("set folder icon: osascript error %q: %w", string(output), err)
	}

	return nil
}
