package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slopscope/slopscope/pkg/domain"
)

func TestServer_RunAndShutdown(t *testing.T) {
	s := New(testConfig{},
		&testScanner{pages: map[string]string{}},
		&testClassifier{},
		&testReputation{},
		&testSettings{current: domain.DefaultSettings()},
		"test", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
