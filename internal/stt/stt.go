// Package stt defines the speech-to-text vendor capability interface and a
// registry of vendor adapters. The transcription pipeline is written once
// against Provider; each vendor adapter owns its wire payloads and
// normalizes them into the canonical transcript model.
package stt

import (
	"context"

	"github.com/sesimlab/counselvoice/internal/provider"
	"github.com/sesimlab/counselvoice/internal/transcript"
)

// Request holds parameters for one transcription call.
type Request struct {
	// AudioPath is the local path of the downloaded audio file.
	AudioPath string
	// LanguageCode is the expected language (e.g. "ko").
	LanguageCode string
}

// Provider is the interface speech-to-text backends must implement.
// Transcribe covers the whole vendor interaction: submit, poll if the
// vendor is job-based, and normalize the payload.
type Provider interface {
	provider.Provider

	Transcribe(ctx context.Context, req Request) (*transcript.Result, error)
}

// Registry holds the vendor adapter factories and instances.
type Registry = provider.Registry[Provider]

// NewRegistry creates an empty vendor registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Provider]()
}

// VendorNames lists the supported vendor adapter names.
func VendorNames() []string {
	return []string{"assemblyai", "deepgram", "speechmatics", "rtzr", "voxtral"}
}
