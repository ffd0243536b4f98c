package session

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/rumor-ml/deckhand/internal/log"
)

// tokenPollInterval is how often the token file is re-read.
const tokenPollInterval = 2 * time.Second

// FirebaseProvider reports the identity behind a Firebase ID token kept in
// a file (written by the sign-in flow, outside this process). The token is
// verified through the Firebase Auth client; a missing or empty file means
// signed out.
//
// Auth client initialization runs in the background; OnChange returns
// ErrProviderNotReady until it completes, which the Manager retries.
type FirebaseProvider struct {
	tokenPath string

	mu        sync.Mutex
	verifier  *auth.Client
	initErr   error
	ready     bool
	callbacks map[int]func(*Identity)
	nextID    int
	current   *Identity
	lastToken string
	stop      chan struct{}
}

// NewFirebaseProvider starts auth-client initialization for the project and
// returns immediately. tokenPath is the file the sign-in flow writes the
// Firebase ID token to.
func NewFirebaseProvider(ctx context.Context, projectID, credsPath, tokenPath string) *FirebaseProvider {
	p := &FirebaseProvider{
		tokenPath: tokenPath,
		callbacks: make(map[int]func(*Identity)),
		stop:      make(chan struct{}),
	}

	go func() {
		conf := &firebase.Config{ProjectID: projectID}
		var opts []option.ClientOption
		if credsPath != "" {
			opts = append(opts, option.WithCredentialsFile(credsPath))
		}

		app, err := firebase.NewApp(ctx, conf, opts...)
		if err == nil {
			var client *auth.Client
			client, err = app.Auth(ctx)
			if err == nil {
				p.mu.Lock()
				p.verifier = client
				p.ready = true
				p.mu.Unlock()
				log.Info(log.CatSession, "Firebase auth client ready", "project", projectID)
				go p.poll(ctx)
				return
			}
		}

		p.mu.Lock()
		p.initErr = err
		p.ready = true
		p.mu.Unlock()
		log.Error(log.CatSession, "Firebase auth init failed", "error", err)
	}()

	return p
}

// OnChange registers a callback for identity changes. Returns
// ErrProviderNotReady while initialization is still in flight.
func (p *FirebaseProvider) OnChange(fn func(*Identity)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil, ErrProviderNotReady
	}
	if p.initErr != nil {
		return nil, p.initErr
	}

	id := p.nextID
	p.nextID++
	p.callbacks[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.callbacks, id)
	}, nil
}

// Current returns the identity behind the last verified token, or nil.
func (p *FirebaseProvider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Stop ends token polling.
func (p *FirebaseProvider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// poll re-reads the token file and notifies callbacks when the signed-in
// identity changes.
func (p *FirebaseProvider) poll(ctx context.Context) {
	ticker := time.NewTicker(tokenPollInterval)
	defer ticker.Stop()

	p.check(ctx)
	for {
		select {
		case <-ticker.C:
			p.check(ctx)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *FirebaseProvider) check(ctx context.Context) {
	data, err := os.ReadFile(p.tokenPath)
	token := ""
	if err == nil {
		token = strings.TrimSpace(string(data))
	}

	p.mu.Lock()
	if token == p.lastToken {
		p.mu.Unlock()
		return
	}
	p.lastToken = token
	verifier := p.verifier
	p.mu.Unlock()

	var identity *Identity
	if token != "" && verifier != nil {
		decoded, err := verifier.VerifyIDToken(ctx, token)
		if err != nil {
			log.Warn(log.CatSession, "token verification failed", "error", err)
		} else {
			identity = &Identity{UID: decoded.UID}
			if email, ok := decoded.Claims["email"].(string); ok {
				identity.Email = email
			}
			if name, ok := decoded.Claims["name"].(string); ok {
				identity.DisplayName = name
			}
		}
	}

	p.mu.Lock()
	p.current = identity
	callbacks := make([]func(*Identity), 0, len(p.callbacks))
	for _, fn := range p.callbacks {
		callbacks = append(callbacks, fn)
	}
	p.mu.Unlock()

	log.Info(log.CatSession, "identity changed", "signedIn", identity != nil)
	for _, fn := range callbacks {
		fn(identity)
	}
}

var _ Provider = (*FirebaseProvider)(nil)
