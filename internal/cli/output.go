package cli

import (
	"errors"
	"fmt"
	"os"
)

// writeFileAtomic writes content to path, failing if the file already exists
// (O_EXCL) so a finished transcript is never silently overwritten. On write
// failure the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}

// emitTranscript writes text to the output file when one is set, otherwise to
// stdout. File writes get a confirmation line on stderr so stdout stays clean
// for piping.
func emitTranscript(env *Env, outputPath, text string) error {
	if outputPath == "" {
		_, err := fmt.Fprintln(env.Stdout, text)
		return err
	}

	if err := writeFileAtomic(outputPath, text+"\n"); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Done: %s\n", outputPath)
	return nil
}
