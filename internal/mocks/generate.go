// Package mocks provides mock implementations for testing the voicepipe pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the
// engine ports. The mocks are generated using go:generate directives and provide
// a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	engine := mocks.NewMockTranscriptionEngine(ctrl)
//	engine.EXPECT().Transcribe(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(transcript, nil)
package mocks

// Generate mocks for the engine ports from internal/core.
// This creates MockTranscriptionEngine, MockContentAnalyzer, MockImageSynthesizer,
// MockStatusPusher, and MockCompletionPublisher.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=engines_mock.go github.com/echofeed/voicepipe/internal/core TranscriptionEngine,ContentAnalyzer,ImageSynthesizer,StatusPusher,CompletionPublisher
