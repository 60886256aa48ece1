package documents

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dhportal/main_backend/cases"
)

// LocalStore keeps case documents under a directory, for lite mode.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore { return &LocalStore{root: root} }

func (l *LocalStore) dir(caseType cases.CaseType, caseID string) (string, error) {
	prefix, err := Prefix(caseType, caseID)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(prefix)), nil
}

// List returns the documents present for a case. A case without a directory has none.
func (l *LocalStore) List(_ context.Context, caseType cases.CaseType, caseID string) ([]cases.Attachment, error) {
	dir, err := l.dir(caseType, caseID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []cases.Attachment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := DocumentKey("", e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, cases.Attachment{
			Key:       key,
			CaseID:    caseID,
			CaseType:  caseType,
			Size:      info.Size(),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	return out, nil
}

// RemoveAll deletes the case directory.
func (l *LocalStore) RemoveAll(_ context.Context, caseType cases.CaseType, caseID string) error {
	dir, err := l.dir(caseType, caseID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}
