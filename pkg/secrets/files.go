package secrets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// filesProvider reads secrets mounted as files, as Kubernetes and Docker do.
// A file is a single-value secret; a directory maps file names to values.
type filesProvider struct {
	basePath string
}

func newFilesProvider(base string) (provider, error) {
	if base == "" {
		return nil, fmt.Errorf("secrets: files provider requires a base path")
	}

	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("secrets: secrets base %s not accessible: %w", base, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets: secrets base %s is not a directory", base)
	}

	return &filesProvider{basePath: base}, nil
}

func (f *filesProvider) Name() ProviderType {
	return ProviderFiles
}

func (f *filesProvider) Close() error {
	return nil
}

func (f *filesProvider) Fetch(ctx context.Context, ref Reference) (Secret, error) {
	target := filepath.Join(f.basePath, filepath.FromSlash(ref.Path))
	if !strings.HasPrefix(target, filepath.Clean(f.basePath)+string(os.PathSeparator)) {
		return Secret{}, fmt.Errorf("%w: %s escapes the secrets base", ErrInvalidReference, ref.Path)
	}

	info, err := os.Stat(target)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: path %s not found: %w", ref.Path, err)
	}

	data := make(map[string]string)
	if !info.IsDir() {
		content, err := os.ReadFile(target)
		if err != nil {
			return Secret{}, err
		}
		data[defaultKey] = strings.TrimSpace(string(content))
		return Secret{Data: data}, nil
	}

	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if strings.HasPrefix(d.Name(), "..") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		key, err := filepath.Rel(target, path)
		if err != nil {
			return err
		}
		data[filepath.ToSlash(key)] = strings.TrimSpace(string(content))
		return nil
	})
	if err != nil {
		return Secret{}, err
	}

	return Secret{Data: data}, nil
}
