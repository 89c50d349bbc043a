package service_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/plgd-dev/device-bridge/pkg/service"
	"github.com/stretchr/testify/require"
)

type apiService struct {
	stop     chan struct{}
	closeErr error
}

func newAPIService(closeErr error) *apiService {
	return &apiService{stop: make(chan struct{}), closeErr: closeErr}
}

func (s *apiService) Serve() error {
	<-s.stop
	return nil
}

func (s *apiService) Close() error {
	close(s.stop)
	return s.closeErr
}

func TestServiceServeAndClose(t *testing.T) {
	closed := false
	s := service.New(newAPIService(nil), newAPIService(nil))
	s.AddCloseFunc(func() { closed = true })

	var wg sync.WaitGroup
	wg.Add(1)
	var serveErr error
	go func() {
		defer wg.Done()
		serveErr = s.Serve()
	}()
	require.NoError(t, s.Close())
	wg.Wait()
	require.NoError(t, serveErr)
	require.True(t, closed)
}

func TestServiceCloseError(t *testing.T) {
	s := service.New(newAPIService(errors.New("close failed")))
	var wg sync.WaitGroup
	wg.Add(1)
	var serveErr error
	go func() {
		defer wg.Done()
		serveErr = s.Serve()
	}()
	require.NoError(t, s.Close())
	wg.Wait()
	require.Error(t, serveErr)
}

type failingService struct {
	closed chan struct{}
}

func (s *failingService) Serve() error {
	return errors.New("cannot listen")
}

func (s *failingService) Close() error {
	close(s.closed)
	return nil
}

func TestServiceServeError(t *testing.T) {
	running := newAPIService(nil)
	failing := &failingService{closed: make(chan struct{})}
	s := service.New(running, failing)
	err := s.Serve()
	require.Error(t, err)
	// the running service is closed as well
	_, ok := <-running.stop
	require.False(t, ok)
	_, ok = <-failing.closed
	require.False(t, ok)
}
