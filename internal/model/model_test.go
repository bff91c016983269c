package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseComponents(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		expected []string
	}{
		{"Empty", "", nil},
		{"Single", "ilo5", []string{"ilo5"}},
		{"Multiple", "ilo5,bios", []string{"ilo5", "bios"}},
		{"Whitespace", " ilo5 , bios ", []string{"ilo5", "bios"}},
		{"Empty entries", "ilo5,,bios,", []string{"ilo5", "bios"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseComponents(tt.csv))
		})
	}
}

func TestStatusRecord(t *testing.T) {
	sr := NewStatusRecord("initialized task")
	assert.Equal(t, "initialized task", sr.Last())

	sr.Append("")
	assert.Equal(t, []string{"initialized task"}, sr.Entries())

	sr.Append("media prepared")
	assert.Equal(t, "media prepared", sr.Last())
	assert.Len(t, sr.Entries(), 2)
}

func TestNewTask(t *testing.T) {
	req := &UpdateRequest{ImageURL: "http://example.com/spp.iso"}

	task := NewTask(req)
	assert.NotEqual(t, "", task.ID.String())
	assert.Equal(t, StatePending, task.State)
	assert.Equal(t, req, task.Request)
	assert.Equal(t, "initialized task", task.Status.Last())
}
