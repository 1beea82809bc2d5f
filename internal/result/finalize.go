package result

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gateclient/internal/apperrors"
)

// OutputMode selects how an artifact is handed to the caller.
type OutputMode string

const (
	// ModePath moves the artifact to a caller-declared destination path.
	ModePath OutputMode = "path"
	// ModeBinary loads the artifact into memory and deletes the temp copy.
	ModeBinary OutputMode = "binary"
)

// Options controls finalization of one run's artifacts.
type Options struct {
	Mode           OutputMode
	DestPath       string // absolute destination, required for ModePath
	AvoidCollision bool   // never overwrite: suffix " (1)", " (2)", ...
}

// Output is one finalized artifact record.
type Output struct {
	FilePath string `json:"filePath,omitempty"` // set in path mode
	Data     []byte `json:"data,omitempty"`     // set in binary mode
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// FinalizeAll reconciles every artifact of a result independently,
// preserving delivery order. With more than one artifact in path mode,
// collision avoidance is forced so later artifacts never overwrite
// earlier ones.
func FinalizeAll(refs []Reference, opts Options) ([]*Output, error) {
	if len(refs) > 1 && opts.Mode == ModePath {
		opts.AvoidCollision = true
	}

	outputs := make([]*Output, 0, len(refs))
	for i, ref := range refs {
		out, err := Finalize(ref, opts)
		if err != nil {
			return nil, fmt.Errorf("artifact[%d]: %w", i, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// Finalize converts one artifact reference to exactly one of a moved file
// or a binary payload. The temporary copy is consumed either way: moved in
// path mode, read-then-deleted in binary mode. A read failure leaves the
// temp file in place.
func Finalize(ref Reference, opts Options) (*Output, error) {
	switch opts.Mode {
	case ModePath:
		return finalizePath(ref, opts)
	case ModeBinary:
		return finalizeBinary(ref)
	default:
		return nil, apperrors.Validation("outputMode", fmt.Sprintf("unknown output mode %q", opts.Mode))
	}
}

func finalizePath(ref Reference, opts Options) (*Output, error) {
	if opts.DestPath == "" {
		return nil, apperrors.Validation("destPath", "destination path is required for path output")
	}

	dest := opts.DestPath
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, apperrors.Internal("result.finalize", err)
	}
	if opts.AvoidCollision {
		var err error
		dest, err = disambiguate(dest)
		if err != nil {
			return nil, apperrors.Internal("result.finalize", err)
		}
	}

	// Inline artifacts are written straight to the destination.
	if ref.Path == "" {
		if err := os.WriteFile(dest, ref.Payload, 0o644); err != nil {
			return nil, apperrors.Internal("result.finalize", err)
		}
		return &Output{FilePath: dest, FileName: filepath.Base(dest)}, nil
	}

	if _, err := os.Stat(ref.Path); err != nil {
		return nil, apperrors.ArtifactNotFound(ref.Path)
	}
	if err := moveFile(ref.Path, dest); err != nil {
		return nil, apperrors.Internal("result.finalize", err)
	}

	slog.Debug("Artifact moved", "from", ref.Path, "to", dest)
	return &Output{FilePath: dest, FileName: filepath.Base(dest)}, nil
}

func finalizeBinary(ref Reference) (*Output, error) {
	mime := ref.MimeType

	if ref.Path == "" {
		if mime == "" {
			mime = MimeForName(ref.FileName)
		}
		return &Output{Data: ref.Payload, FileName: ref.FileName, MimeType: mime}, nil
	}

	data, err := os.ReadFile(ref.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ArtifactNotFound(ref.Path)
		}
		return nil, apperrors.Internal("result.finalize", err)
	}

	// Delete only after the read succeeded.
	if err := os.Remove(ref.Path); err != nil {
		slog.Warn("Failed to remove consumed artifact", "path", ref.Path, "error", err)
	}

	name := ref.FileName
	if name == "" {
		name = filepath.Base(ref.Path)
	}
	if mime == "" {
		mime = MimeForName(name)
	}
	return &Output{Data: data, FileName: name, MimeType: mime}, nil
}

// disambiguate returns the first non-existing variant of path, appending a
// numeric suffix before the extension: out.mp4, out (1).mp4, out (2).mp4, ...
func disambiguate(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
}

// moveFile renames src to dest, falling back to copy+delete when the rename
// crosses filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
