package party

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

type invitation struct {
	id        string
	sender    domain.UserID
	recipient domain.UserID
	channel   string
	cancel    context.CancelFunc

	once     sync.Once
	done     chan struct{}
	accepted bool
	err      error
}

func (i *invitation) resolve(accepted bool, err error) {
	i.once.Do(func() {
		i.accepted, i.err = accepted, err
		close(i.done)
		i.cancel()
	})
}

func (i *invitation) wait(ctx context.Context) (bool, error) {
	select {
	case <-i.done:
		return i.accepted, i.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// SendInvitation invites recipient on behalf of the member behind sender
// and waits for the outcome: true once the recipient joins, false when the
// channel reports a decline. Canceling ctx withdraws the invitation.
//
// A sender has at most one outstanding invitation per recipient. Inviting
// again over the same channel waits on the existing invitation; inviting
// over another channel cancels it.
func (p *Party) SendInvitation(ctx context.Context, sender core.SessionID, recipient domain.UserID, forceDefaultChannel bool) (bool, error) {
	inv, err := doValue(ctx, p, func(ctx context.Context) (*invitation, error) {
		return p.startInvitation(ctx, sender, recipient, forceDefaultChannel)
	})
	if err != nil {
		return false, err
	}
	accepted, err := inv.wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		p.withdraw(inv, ctxErr)
	}
	return accepted, err
}

func (p *Party) startInvitation(ctx context.Context, senderSID core.SessionID, recipient domain.UserID, forceDefault bool) (*invitation, error) {
	s := p.requireSettings()
	sender, err := p.memberOf(senderSID)
	if err != nil {
		return nil, err
	}
	if s.OnlyLeaderCanInvite && !p.isLeader(sender) {
		return nil, ErrNotLeader
	}
	if _, ok := p.sessionOfUser(recipient); ok {
		return nil, ErrAlreadyMember
	}

	user, rs, err := p.resolveRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	ch, err := p.selectChannel(sender.session, user, rs, forceDefault)
	if err != nil {
		return nil, err
	}

	bySender := p.invitations[recipient]
	if bySender == nil {
		bySender = make(map[domain.UserID]*invitation)
		p.invitations[recipient] = bySender
	}
	if prev, ok := bySender[sender.data.UserID]; ok {
		if prev.channel == ch.PlatformName() {
			return prev, nil
		}
		p.logger.Info().
			Str("sender", string(sender.data.UserID)).
			Str("recipient", string(recipient)).
			Str("from", prev.channel).
			Str("to", ch.PlatformName()).
			Msg("invitation superseded")
		prev.resolve(false, ErrInvitationCanceled)
		delete(bySender, sender.data.UserID)
	}

	ictx, cancel := context.WithCancel(p.ctx)
	inv := &invitation{
		id:        uuid.NewString(),
		sender:    sender.data.UserID,
		recipient: recipient,
		channel:   ch.PlatformName(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	bySender[sender.data.UserID] = inv

	ic := core.InvitationContext{
		InvitationID:     inv.id,
		PartyID:          p.id,
		Sender:           sender.session,
		Recipient:        user,
		RecipientSession: rs,
	}
	p.logger.Info().
		Str("invitation_id", inv.id).
		Str("sender", string(inv.sender)).
		Str("recipient", string(recipient)).
		Str("channel", inv.channel).
		Bool("online", rs != nil).
		Msg("invitation sent")
	p.spawn("invitation", func(context.Context) { p.deliver(ictx, inv, ch, ic) })
	return inv, nil
}

func (p *Party) resolveRecipient(ctx context.Context, uid domain.UserID) (domain.User, *core.Session, error) {
	sess, err := p.sessions.GetSessionByUser(ctx, uid)
	switch {
	case err == nil:
		return sess.User, &sess, nil
	case !errors.Is(err, core.ErrSessionNotFound):
		return domain.User{}, nil, fmt.Errorf("resolve recipient %s: %w", uid, err)
	}
	user, err := p.sessions.GetUser(ctx, uid)
	if errors.Is(err, core.ErrUserNotFound) {
		return domain.User{}, nil, ErrUnknownRecipient
	}
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("resolve recipient %s: %w", uid, err)
	}
	return user, nil, nil
}

// selectChannel picks exactly one delivery channel: the default channel
// when forced, then the recipient's own platform when both sides are online
// on the same platform, then the first channel compatible with both sides,
// preferring channels that reach offline users when the recipient is offline.
func (p *Party) selectChannel(sender core.Session, recipient domain.User, rs *core.Session, forceDefault bool) (core.InvitationChannel, error) {
	if forceDefault {
		if p.defaultCh == nil {
			return nil, ErrNoInvitationChannel
		}
		return p.defaultCh, nil
	}
	senderPlatform := sender.User.Platform.Platform
	online := rs != nil
	recipientPlatform := recipient.Platform.Platform
	if online {
		recipientPlatform = rs.User.Platform.Platform
		if recipientPlatform == senderPlatform {
			for _, ch := range p.channels {
				if ch.PlatformName() == recipientPlatform {
					return ch, nil
				}
			}
		}
	}

	var fallback core.InvitationChannel
	for _, ch := range p.channels {
		if !ch.IsCompatible(senderPlatform) || !ch.IsCompatible(recipientPlatform) {
			continue
		}
		if online || ch.CanReachOfflineUsers() {
			return ch, nil
		}
		if fallback == nil {
			fallback = ch
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoInvitationChannel
}

func (p *Party) deliver(ctx context.Context, inv *invitation, ch core.InvitationChannel, ic core.InvitationContext) {
	accepted, err := ch.SendInvitation(ctx, ic)
	switch {
	case err != nil:
		inv.resolve(false, err)
	case !accepted:
		p.logger.Info().Str("invitation_id", inv.id).Msg("invitation declined")
		inv.resolve(false, nil)
	default:
		// Accepted on the channel side; the join itself resolves it.
		return
	}
	p.forget(inv)
}

// withdraw drops inv after its waiter gave up.
func (p *Party) withdraw(inv *invitation, cause error) {
	inv.resolve(false, cause)
	p.forget(inv)
}

func (p *Party) forget(inv *invitation) {
	_ = p.do(context.Background(), func(context.Context) error {
		if bySender, ok := p.invitations[inv.recipient]; ok && bySender[inv.sender] == inv {
			delete(bySender, inv.sender)
			if len(bySender) == 0 {
				delete(p.invitations, inv.recipient)
			}
		}
		return nil
	})
}

// DeclineInvitation resolves sender's invitation to recipient as declined.
func (p *Party) DeclineInvitation(ctx context.Context, recipient, sender domain.UserID) error {
	return p.do(ctx, func(context.Context) error {
		inv, ok := p.invitations[recipient][sender]
		if !ok {
			return nil
		}
		inv.resolve(false, nil)
		delete(p.invitations[recipient], sender)
		if len(p.invitations[recipient]) == 0 {
			delete(p.invitations, recipient)
		}
		return nil
	})
}

// PendingInvitations lists the senders with an outstanding invitation to
// recipient.
func (p *Party) PendingInvitations(ctx context.Context, recipient domain.UserID) ([]domain.UserID, error) {
	return doValue(ctx, p, func(context.Context) ([]domain.UserID, error) {
		var out []domain.UserID
		for sender := range p.invitations[recipient] {
			out = append(out, sender)
		}
		return out, nil
	})
}

// CreateInvitationCode returns the party's join code, creating it if needed.
func (p *Party) CreateInvitationCode(ctx context.Context, caller core.SessionID) (string, error) {
	return doValue(ctx, p, func(context.Context) (string, error) {
		if err := p.checkInviter(caller); err != nil {
			return "", err
		}
		if p.code != "" {
			return p.code, nil
		}
		if p.codes == nil {
			return "", errors.New("invitation codes are not enabled")
		}
		code, err := p.codes.Create(p.id)
		if err != nil {
			return "", fmt.Errorf("create invitation code: %w", err)
		}
		p.code = code
		return code, nil
	})
}

func (p *Party) CancelInvitationCode(ctx context.Context, caller core.SessionID) error {
	return p.do(ctx, func(context.Context) error {
		if err := p.checkInviter(caller); err != nil {
			return err
		}
		p.releaseCode()
		return nil
	})
}

func (p *Party) checkInviter(caller core.SessionID) error {
	s := p.requireSettings()
	m, err := p.memberOf(caller)
	if err != nil {
		return err
	}
	if s.OnlyLeaderCanInvite && !p.isLeader(m) {
		return ErrNotLeader
	}
	return nil
}

func (p *Party) releaseCode() {
	if p.code == "" {
		return
	}
	if p.codes != nil {
		p.codes.Release(p.code)
	}
	p.code = ""
}
