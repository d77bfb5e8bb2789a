package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/nimburion/movieship/pkg/catalog"
	"github.com/nimburion/movieship/pkg/controller"
	"github.com/nimburion/movieship/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// ExitError carries the process exit code of a command whose result was already rendered.
type ExitError struct {
	Code   int
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// exitCodeFor maps an envelope status to a process exit code: 0 on success, 2 for client-side
// errors, 1 otherwise.
func exitCodeFor(status int) int {
	switch {
	case status < http.StatusBadRequest:
		return 0
	case status < http.StatusInternalServerError:
		return 2
	default:
		return 1
	}
}

// render writes the envelope for (data, err) and turns a failed status into an ExitError.
func render(w io.Writer, data any, err error) error {
	status, writeErr := controller.Render(w, data, err)
	if writeErr != nil {
		return fmt.Errorf("write response: %w", writeErr)
	}
	if code := exitCodeFor(status); code != 0 {
		return &ExitError{Code: code, Status: status}
	}
	return nil
}

// writeYAML writes v as a YAML document.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	return enc.Close()
}

// parseDocument decodes a request body given as MongoDB extended JSON. A value starting with
// "@" names a file to read, "@-" reads stdin.
func parseDocument(raw string, stdin io.Reader) (document.Document, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: a JSON document is required", catalog.ErrInvalidInput)
	}

	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		if raw == "@-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(strings.TrimPrefix(raw, "@"))
		}
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
	}

	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrInvalidInput, err)
	}
	return doc, nil
}
