package bmc

import (
	"context"
)

// MockVirtualMedia implements the VirtualMedia interface for tests,
// recording the media operations invoked on it.
type MockVirtualMedia struct {
	OpenErr   error
	EjectErr  error
	InsertErr error

	Opened   bool
	Closed   bool
	Ejected  []string
	Inserted map[string]string
}

func NewMockVirtualMedia() *MockVirtualMedia {
	return &MockVirtualMedia{Inserted: map[string]string{}}
}

func (m *MockVirtualMedia) Open(_ context.Context) error {
	if m.OpenErr != nil {
		return m.OpenErr
	}

	m.Opened = true

	return nil
}

func (m *MockVirtualMedia) Close() error {
	m.Closed = true

	return nil
}

func (m *MockVirtualMedia) EjectVirtualMedia(_ context.Context, kind string) error {
	if m.EjectErr != nil {
		return m.EjectErr
	}

	m.Ejected = append(m.Ejected, kind)

	return nil
}

func (m *MockVirtualMedia) InsertVirtualMedia(_ context.Context, kind, imageURL string) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}

	m.Inserted[kind] = imageURL

	return nil
}
