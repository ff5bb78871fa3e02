package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"webtoondl/models"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.Request
		wantErr bool
	}{
		{"valid", models.Request{Title: "Example", Episode: 1}, false},
		{"valid with id", models.Request{ID: "abc-123_x.y", Title: "Example", Episode: 4}, false},
		{"missing title", models.Request{Episode: 1}, true},
		{"blank title", models.Request{Title: "   ", Episode: 1}, true},
		{"zero episode", models.Request{Title: "Example"}, true},
		{"negative episode", models.Request{Title: "Example", Episode: -2}, true},
		{"long title", models.Request{Title: strings.Repeat("a", MaxTitleLength+1), Episode: 1}, true},
		{"bad id", models.Request{ID: "../etc", Title: "Example", Episode: 1}, true},
		{"dot id", models.Request{ID: ".", Title: "Example", Episode: 1}, true},
		{"dot dot id", models.Request{ID: "..", Title: "Example", Episode: 1}, true},
		{"leading underscore id", models.Request{ID: "_x", Title: "Example", Episode: 1}, true},
		{"trailing underscore id", models.Request{ID: "x_", Title: "Example", Episode: 1}, false},
		{"long id", models.Request{ID: strings.Repeat("a", MaxRequestIDLength+1), Title: "Example", Episode: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
