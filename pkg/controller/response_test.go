package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/nimburion/movieship/pkg/resource"
)

func TestRender_Success(t *testing.T) {
	var buf bytes.Buffer
	status, err := Render(&buf, map[string]any{"imdb_id": "tt1"}, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if data, ok := decoded["data"].(map[string]any); !ok || data["imdb_id"] != "tt1" {
		t.Errorf("unexpected data %v", decoded["data"])
	}
	if errs, ok := decoded["errors"].([]any); !ok || len(errs) != 0 {
		t.Errorf("errors = %v, want empty list", decoded["errors"])
	}
}

func TestRender_Failure(t *testing.T) {
	var buf bytes.Buffer
	status, err := Render(&buf, map[string]any{"ignored": true}, resource.ErrNotFound)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}

	var decoded Response
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Data != nil {
		t.Errorf("data = %v, want null", decoded.Data)
	}
	if len(decoded.Errors) != 1 || decoded.Errors[0].Error != "ResourceNotFoundException" || decoded.Errors[0].Code != CodeNotFound {
		t.Errorf("unexpected errors %+v", decoded.Errors)
	}
}
