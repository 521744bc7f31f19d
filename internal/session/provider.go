package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// ProviderParams groups the dependencies of a Provider.
type ProviderParams struct {
	Auth             AuthService
	Roles            RoleSource
	EmailRedirectURL string
	Logger           *logger.Logger
}

type subscriber struct {
	id int
	fn func(State)
}

// Provider tracks the signed-in identity and its derived role.
//
// It starts in a resolving state (Loading) and leaves it on the first session it sees,
// whether from the initial check or from an auth-change event. Every identity change
// triggers an asynchronous role lookup; lookups are tagged with a generation so a
// superseded one can never overwrite a newer identity's role. Subscribers see
// states in the order they were set and never receive one older than the last
// they were sent.
type Provider struct {
	auth     AuthService
	roles    RoleSource
	redirect string
	logg     *logger.Logger

	mu          sync.Mutex
	state       State
	identity    string
	generation  uint64
	subscribers []subscriber
	nextID      int
	started     bool
	seq         uint64

	// deliverMu serialises fan-out; delivered is the seq of the last state sent.
	deliverMu sync.Mutex
	delivered uint64

	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewProvider builds a provider in the resolving state.
func NewProvider(params ProviderParams) (*Provider, error) {
	if params.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if params.Roles == nil {
		return nil, fmt.Errorf("role source is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		ctx:      ctx,
		cancel:   cancel,
		auth:     params.Auth,
		roles:    params.Roles,
		redirect: strings.TrimSpace(params.EmailRedirectURL),
		logg:     logg,
		state:    State{Role: enums.RoleGuest, Loading: true},
	}, nil
}

// Start subscribes to auth changes and then asks for the current session. The
// subscription must exist first so nothing emitted in between is lost.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("session provider already started")
	}
	p.started = true
	p.mu.Unlock()

	p.unsubscribe = p.auth.OnAuthStateChange(p.handle)

	current, err := p.auth.GetSession(ctx)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "session.initial_check.failed")
		current = nil
	}
	p.handle(enums.AuthEventInitialSession, current)
	return nil
}

// Stop drops the auth subscription and waits for in-flight role lookups.
func (p *Provider) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.cancel()
	p.wg.Wait()
}

// State returns the current snapshot.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn for every state change. fn runs outside the state lock
// but inside delivery, so it must not sign in or out through the provider.
func (p *Provider) Subscribe(fn func(State)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subscribers = append(p.subscribers, subscriber{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.subscribers {
			if sub.id == id {
				p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Await blocks until the provider is no longer loading.
func (p *Provider) Await(ctx context.Context) (State, error) {
	settled := make(chan State, 1)
	unsubscribe := p.Subscribe(func(s State) {
		if s.Loading {
			return
		}
		select {
		case settled <- s:
		default:
		}
	})
	defer unsubscribe()

	if current := p.State(); !current.Loading {
		return current, nil
	}
	select {
	case s := <-settled:
		return s, nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

// SignUp registers a new account. Errors come back as display text, never as a Go error.
func (p *Provider) SignUp(ctx context.Context, email, password string) Result {
	if err := p.auth.SignUp(ctx, strings.TrimSpace(email), password, p.redirect); err != nil {
		return p.failure(ctx, "session.sign_up.failed", err)
	}
	return Result{}
}

// SignIn authenticates and adopts the returned session.
func (p *Provider) SignIn(ctx context.Context, email, password string) Result {
	current, err := p.auth.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return p.failure(ctx, "session.sign_in.failed", err)
	}
	p.handle(enums.AuthEventSignedIn, current)
	return Result{}
}

// SignOut ends the session; local state reverts to guest once the service confirms.
func (p *Provider) SignOut(ctx context.Context) Result {
	if err := p.auth.SignOut(ctx); err != nil {
		return p.failure(ctx, "session.sign_out.failed", err)
	}
	p.handle(enums.AuthEventSignedOut, nil)
	return Result{}
}

func (p *Provider) failure(ctx context.Context, msg string, err error) Result {
	p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), msg)
	return Result{Error: pkgerrors.UserMessage(err)}
}

func (p *Provider) handle(event enums.AuthEvent, current *Session) {
	userID, email := "", ""
	if current != nil {
		userID = strings.TrimSpace(current.UserID)
		email = current.Email
	}

	p.mu.Lock()
	before := p.state
	switch {
	case userID == "":
		p.generation++
		p.identity = ""
		p.state = State{Role: enums.RoleGuest}
	case userID != p.identity:
		p.generation++
		p.identity = userID
		p.state = State{UserID: userID, Email: email, Role: enums.RoleGuest, Loading: true}
		p.wg.Add(1)
		go p.resolve(p.generation, userID)
	default:
		p.state.Email = email
	}
	after := p.state
	changed := after != before
	var seq uint64
	if changed {
		seq = p.bump()
	}
	p.mu.Unlock()

	if changed {
		ctx := p.logg.WithFields(context.Background(), map[string]any{
			"event":   event.String(),
			"user_id": after.UserID,
			"loading": after.Loading,
		})
		p.logg.Debug(ctx, "session.changed")
		p.deliver(seq, after)
	}
}

func (p *Provider) resolve(generation uint64, userID string) {
	defer p.wg.Done()

	rows, err := p.roles.FetchRoles(p.ctx, userID)
	role := ResolveRole(rows, err)
	if err != nil {
		ctx := p.logg.WithFields(p.ctx, map[string]any{"user_id": userID, "error": err.Error()})
		p.logg.Warn(ctx, "session.role_lookup.failed")
	}

	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		p.logg.Debug(p.logg.WithUserID(context.Background(), userID), "session.role_lookup.stale")
		return
	}
	p.state.Role = role
	p.state.Loading = false
	after := p.state
	seq := p.bump()
	p.mu.Unlock()

	p.deliver(seq, after)
}

// bump stamps a state change. Callers hold p.mu.
func (p *Provider) bump() uint64 {
	p.seq++
	return p.seq
}

// deliver fans s out unless a newer state has already been sent.
func (p *Provider) deliver(seq uint64, s State) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	if seq <= p.delivered {
		return
	}
	p.delivered = seq

	p.mu.Lock()
	subs := make([]subscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn(s)
	}
}
