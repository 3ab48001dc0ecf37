package task

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		original []uuid.UUID
		incoming []uuid.UUID
		added    []uuid.UUID
		removed  []uuid.UUID
	}{
		{"unchanged", []uuid.UUID{wfA, wfB}, []uuid.UUID{wfB, wfA}, nil, nil},
		{"swap one", []uuid.UUID{wfA, wfB}, []uuid.UUID{wfB, wfC}, []uuid.UUID{wfC}, []uuid.UUID{wfA}},
		{"clear", []uuid.UUID{wfA, wfB}, []uuid.UUID{}, nil, []uuid.UUID{wfA, wfB}},
		{"from empty", nil, []uuid.UUID{wfC, wfA}, []uuid.UUID{wfC, wfA}, nil},
		{"duplicates", []uuid.UUID{wfA}, []uuid.UUID{wfC, wfC, wfA}, []uuid.UUID{wfC}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := Diff(tt.original, tt.incoming)
			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.removed, removed)
		})
	}
}
