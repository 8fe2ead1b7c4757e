package ksdk

import (
	"context"
	"errors"
	"net/http"

	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/ksdk/kerr"
)

// Sdk wires config, session storage, the HTTP client and a JobClient so CLI
// commands don't need to assemble them themselves.
type Sdk struct {
	Config  *Config
	Client  *Client
	Session SessionStore
	Jobs    *JobClient

	log         *klog.Logger
	unsubscribe func()
}

type sdkOptions struct {
	session    SessionStore
	logger     *klog.Logger
	httpClient *http.Client
}

type SdkOption func(*sdkOptions)

// WithSession replaces the default keyring-backed session store.
func WithSession(s SessionStore) SdkOption {
	return func(o *sdkOptions) { o.session = s }
}

func WithSdkLogger(l *klog.Logger) SdkOption {
	return func(o *sdkOptions) { o.logger = l }
}

func WithSdkHTTPClient(hc *http.Client) SdkOption {
	return func(o *sdkOptions) { o.httpClient = hc }
}

// NewSdk returns an initialized SDK for cfg.
func NewSdk(cfg *Config, opts ...SdkOption) (*Sdk, error) {
	o := sdkOptions{logger: klog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.session == nil {
		o.session = NewKeyringStore(cfg.BaseURL)
	}

	clientOpts := []ClientOption{
		WithRequestTimeout(cfg.RequestTimeout),
		WithDownloadTimeout(cfg.DownloadTimeout),
		WithClientLogger(o.logger),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(o.httpClient))
	}
	c, err := NewClient(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	s := &Sdk{
		Config:  cfg,
		Client:  c,
		Session: o.session,
		log:     o.logger,
		Jobs: NewJobClient(c,
			WithPollInterval(cfg.PollInterval),
			WithCacheDir(cfg.CacheDir),
			WithLogger(o.logger),
		),
	}
	s.unsubscribe = s.Jobs.Subscribe(func(ev Event) {
		if ev.Type == EventPollError {
			s.HandleUnauthorized(ev.Err)
		}
	})
	return s, nil
}

// Credential loads the stored credential and rejects it locally when it is
// missing or expired.
func (s *Sdk) Credential() (Credential, error) {
	cred, err := s.Session.Load()
	if errors.Is(err, ErrNoCredential) {
		return "", kerr.Wrap(kerr.CodeAuthentication, "not logged in", err)
	}
	if err != nil {
		return "", err
	}
	if err := cred.Check(DefaultTokenSkew); err != nil {
		return "", err
	}
	return cred, nil
}

// ClearCredentials removes the stored credential.
func (s *Sdk) ClearCredentials() {
	if s == nil || s.Session == nil {
		return
	}
	if err := s.Session.Clear(); err != nil {
		s.log.Warn("failed to clear credential", "error", err)
	}
}

// HandleUnauthorized clears the stored credential when err is a 401 from the
// service and reports whether it did.
func (s *Sdk) HandleUnauthorized(err error) bool {
	if kerr.StatusOf(err) != http.StatusUnauthorized {
		return false
	}
	s.ClearCredentials()
	return true
}

func (s *Sdk) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	resp, err := s.Client.Login(ctx, LoginInput{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if err := s.Session.Save(Credential(resp.AccessToken)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Sdk) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	resp, err := s.Client.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.Session.Save(Credential(resp.AccessToken)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Sdk) Logout() error {
	return s.Session.Clear()
}

func (s *Sdk) Me(ctx context.Context) (*User, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	u, err := s.Client.Me(ctx, cred)
	s.HandleUnauthorized(err)
	return u, err
}

func (s *Sdk) Limits(ctx context.Context) (*Limits, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	l, err := s.Client.Limits(ctx, cred)
	s.HandleUnauthorized(err)
	return l, err
}

func (s *Sdk) Stats(ctx context.Context) (*UserStats, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	st, err := s.Client.Stats(ctx, cred)
	s.HandleUnauthorized(err)
	return st, err
}

// InstantRender renders req synchronously, bypassing the JobClient. The
// caller closes the returned stream.
func (s *Sdk) InstantRender(ctx context.Context, req RenderRequest) (*ArtifactStream, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	stream, err := s.Client.InstantRender(ctx, req.clone(), cred)
	s.HandleUnauthorized(err)
	return stream, err
}

// Submit sends req with the stored credential through the JobClient.
func (s *Sdk) Submit(ctx context.Context, req RenderRequest) (*RenderJob, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	job, err := s.Jobs.Submit(ctx, req, cred)
	s.HandleUnauthorized(err)
	return job, err
}

func (s *Sdk) ResolveArtifact(ctx context.Context) (*Artifact, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	a, err := s.Jobs.ResolveArtifact(ctx, cred)
	s.HandleUnauthorized(err)
	return a, err
}

// Status polls a job once without tracking it.
func (s *Sdk) Status(ctx context.Context, jobID string) (*RenderJob, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	job, err := s.Jobs.PollOnce(ctx, jobID, cred)
	s.HandleUnauthorized(err)
	return job, err
}

func (s *Sdk) ListJobs(ctx context.Context) ([]RenderJob, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	jobs, err := s.Client.ListJobs(ctx, cred)
	s.HandleUnauthorized(err)
	return jobs, err
}

func (s *Sdk) CancelJob(ctx context.Context, jobID string) (*RenderJob, error) {
	cred, err := s.Credential()
	if err != nil {
		return nil, err
	}
	job, err := s.Client.CancelJob(ctx, jobID, cred)
	s.HandleUnauthorized(err)
	return job, err
}

// Close releases the JobClient and its artifact cache.
func (s *Sdk) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.Jobs.Close()
}
