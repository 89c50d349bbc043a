package service

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/device-bridge/pkg/fn"
)

// APIService is a server run by Service.
type APIService interface {
	Serve() error
	Close() error
}

// Service runs API services until a termination signal, Close or a failed Serve.
type Service struct {
	services []APIService
	done     chan struct{}
	sigs     chan os.Signal
	closeFn  fn.FuncList
}

func New(services ...APIService) *Service {
	return &Service{
		sigs:     make(chan os.Signal, 1),
		done:     make(chan struct{}),
		services: services,
	}
}

func (s *Service) serve(wg *sync.WaitGroup, errCh chan<- error, failed chan<- struct{}) {
	for _, apiService := range s.services {
		wg.Add(1)
		go func(serve func() error) {
			defer wg.Done()
			if err := serve(); err != nil {
				errCh <- err
				failed <- struct{}{}
			}
		}(apiService.Serve)
	}
}

// Serve blocks until SIGHUP, SIGINT, SIGTERM, SIGQUIT, Close or until one of the
// services stops with an error. All services are closed before it returns.
func (s *Service) Serve() error {
	defer close(s.done)
	signal.Notify(s.sigs,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(s.sigs)

	var wg sync.WaitGroup
	errCh := make(chan error, len(s.services)*2)
	failed := make(chan struct{}, len(s.services))
	s.serve(&wg, errCh, failed)
	select {
	case <-s.sigs:
	case <-failed:
	}
	for _, apiService := range s.services {
		if err := apiService.Close(); err != nil {
			errCh <- err
		}
	}
	wg.Wait()
	s.closeFn.Execute()
	close(errCh)
	var errors *multierror.Error
	for err := range errCh {
		errors = multierror.Append(errors, err)
	}
	return errors.ErrorOrNil()
}

// Close stops serving and waits for Serve to return.
func (s *Service) Close() error {
	select {
	case s.sigs <- syscall.SIGTERM:
	default:
	}
	<-s.done
	return nil
}

// AddCloseFunc adds a function to be called after the services are closed.
func (s *Service) AddCloseFunc(f func()) {
	s.closeFn.AddFunc(f)
}
