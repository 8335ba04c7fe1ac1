package messaging

import (
	"context"
	"errors"
	"sync"
)

// ContactState is a state of the deep-link auto-contact machine.
type ContactState int

const (
	ContactIdle ContactState = iota
	ContactResolvingTarget
	ContactHistoryCheck
	ContactAwaitingSend
	ContactReady
)

func (s ContactState) String() string {
	switch s {
	case ContactIdle:
		return "idle"
	case ContactResolvingTarget:
		return "resolving_target"
	case ContactHistoryCheck:
		return "history_check"
	case ContactAwaitingSend:
		return "awaiting_send"
	case ContactReady:
		return "ready"
	default:
		return "unknown"
	}
}

// DeepLink is the contact-seller link a session was opened with.
type DeepLink struct {
	TargetID    string `json:"seller_id"`
	ProductName string `json:"product_name"`
}

// ContactOutcome is the result of running the auto-contact machine.
type ContactOutcome struct {
	State  ContactState `json:"-"`
	Target *UserProfile `json:"target,omitempty"`
	// Sent is the introductory message, when one was inserted by this run.
	Sent *Message `json:"sent,omitempty"`
}

// AutoContact drives idle → resolving_target → history_check →
// {awaiting_send | ready} for one session. At most one introductory message
// leaves a given AutoContact, and the attempt store extends that to every
// AutoContact of the same (current user, target) pair.
type AutoContact struct {
	svc *Service

	mu         sync.Mutex
	state      ContactState
	sendLocked bool
	outcome    ContactOutcome
}

// State returns the current state.
func (a *AutoContact) State() ContactState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Run executes the machine for link. onSelect, if not nil, is called with
// the target profile as soon as it is resolved, before any history check.
//
// Once the machine has left idle further calls return the stored outcome
// without touching the backend. A failed target lookup leaves the machine
// idle and is returned as an error.
func (a *AutoContact) Run(ctx context.Context, currentUserID string, link DeepLink, onSelect func(UserProfile)) (ContactOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ContactIdle {
		return a.outcome, nil
	}
	if currentUserID == "" {
		return a.outcome, ErrNoCurrentUser
	}
	if link.TargetID == "" || link.TargetID == currentUserID {
		return a.outcome, nil
	}
	log := a.svc.log.With().Str("user_id", currentUserID).Str("target_id", link.TargetID).Logger()

	a.state = ContactResolvingTarget
	target, err := a.svc.profiles.ProfileByID(ctx, link.TargetID)
	if err != nil {
		a.state = ContactIdle
		log.Warn().Err(err).Msg("auto-contact target lookup failed")
		return a.outcome, err
	}
	a.outcome.Target = &target
	if onSelect != nil {
		onSelect(target)
	}

	a.state = ContactHistoryCheck
	if link.ProductName == "" || a.sendLocked {
		return a.finish(), nil
	}
	n, err := a.svc.messages.CountBetween(ctx, currentUserID, link.TargetID)
	if err != nil {
		log.Warn().Err(err).Msg("auto-contact history check failed, not sending")
		return a.finish(), nil
	}
	if n != 0 {
		return a.finish(), nil
	}

	a.state = ContactAwaitingSend
	a.sendLocked = true
	first, err := a.svc.attempts.Acquire(ctx, currentUserID, link.TargetID)
	if err != nil {
		log.Warn().Err(err).Msg("auto-contact attempt flag unavailable, not sending")
		return a.finish(), nil
	}
	if !first {
		log.Debug().Msg("auto-contact already attempted")
		return a.finish(), nil
	}

	content := IntroMessage(a.introName(ctx, currentUserID), link.ProductName)
	msg, err := a.svc.Send(ctx, currentUserID, link.TargetID, content)
	if err != nil {
		log.Error().Err(err).Msg("auto-contact send failed")
		return a.finish(), nil
	}
	a.outcome.Sent = &msg
	log.Info().Str("message_id", msg.ID).Msg("auto-contact message sent")
	return a.finish(), nil
}

func (a *AutoContact) finish() ContactOutcome {
	a.state = ContactReady
	a.outcome.State = ContactReady
	return a.outcome
}

func (a *AutoContact) introName(ctx context.Context, userID string) string {
	p, err := a.svc.profiles.ProfileByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.svc.log.Warn().Err(err).Str("user_id", userID).Msg("sender profile lookup failed")
		}
		return fallbackIntroName
	}
	return p.DisplayName()
}
