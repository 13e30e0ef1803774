// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestJSON(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"project_id": "test-project",
		"count":      42,
	}
	if err := JSONTo(&buf, data); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "  \"project_id\": \"test-project\"") {
		t.Errorf("expected indented project_id field, got: %s", out)
	}
	if !strings.Contains(out, `"count": 42`) {
		t.Errorf("missing count field, got: %s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("expected trailing newline, got: %q", out)
	}
}

func TestJSONRespectsTags(t *testing.T) {
	type result struct {
		ProjectID string `json:"project_id"`
		Count     int    `json:"count"`
		Optional  string `json:"optional,omitempty"`
		Skipped   string `json:"-"`
	}

	var buf bytes.Buffer
	if err := JSONTo(&buf, result{ProjectID: "p", Count: 1, Skipped: "hidden"}); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"project_id"`) {
		t.Errorf("expected tag name project_id, got: %s", out)
	}
	if strings.Contains(out, `"optional"`) {
		t.Errorf("empty omitempty field present, got: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("dash-tagged field present, got: %s", out)
	}
}

func TestJSONError(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONErrorTo(&buf, errors.New("something went wrong")); err != nil {
		t.Fatalf("JSONErrorTo failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"error": "something went wrong"`) {
		t.Errorf("missing error field, got: %s", out)
	}
	if strings.Contains(out, `"code"`) {
		t.Errorf("empty code field present, got: %s", out)
	}
}
