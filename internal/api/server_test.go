package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubArchive struct{ err error }

func (s stubArchive) HealthCheck(context.Context) error { return s.err }

func TestArchiveStatus(t *testing.T) {
	tests := []struct {
		name    string
		archive archiveChecker
		want    string
	}{
		{"disabled", nil, "disabled"},
		{"healthy", stubArchive{}, "healthy"},
		{"unhealthy", stubArchive{err: errors.New("cluster red")}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, archiveStatus(context.Background(), tt.archive))
		})
	}
}
