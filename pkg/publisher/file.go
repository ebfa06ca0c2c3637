// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

// FilePublisher writes the status as a JSON document to a fixed path.
// Readers never observe a partially written file: the document is written to
// a temporary file in the same directory and renamed over the target.
type FilePublisher struct {
	path string
}

// NewFilePublisher returns a publisher for path. The parent directory is created if missing.
func NewFilePublisher(path string) (*FilePublisher, error) {
	if path == "" {
		return nil, fmt.Errorf("status file path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}

	return &FilePublisher{path: path}, nil
}

func (p *FilePublisher) Name() string {
	return "file"
}

// Path returns the target file.
func (p *FilePublisher) Path() string {
	return p.path
}

func (p *FilePublisher) Publish(ctx context.Context, status models.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), "."+filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary status file: %w", err)
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.Write(append(data, '\n'))
	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write status file: %w", errors.Join(writeErr, closeErr))
	}

	if err := os.Rename(tmpName, p.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace status file: %w", err)
	}

	return nil
}
