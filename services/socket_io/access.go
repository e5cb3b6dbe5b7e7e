package socket_io

import (
	"context"
	"fmt"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/chat"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/friends"
	"github.com/Maxapelquist/preparty-social-hub/services/game"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/parties"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
)

var ErrSubscriptionForbidden = errs.New(errs.ErrForbidden, "you cannot follow these changes")

type gameMembership interface {
	IsParticipant(ctx context.Context, gameID, userID string) (bool, error)
}

type partyVisibility interface {
	Get(ctx context.Context, viewerID, partyID string) (*parties.Listing, error)
}

// Access decides which change subscriptions a user may open. Every table
// needs a filter; the filter column decides which check applies.
type Access struct {
	db      *gorm.DB
	games   gameMembership
	parties partyVisibility
}

func NewAccess(db *gorm.DB, games gameMembership, parties partyVisibility) *Access {
	return &Access{db: db, games: games, parties: parties}
}

func (a *Access) Authorize(ctx context.Context, userID, table string, f changefeed.Filter) error {
	self := f.Value == userID

	switch table {
	case profiles.TableProfiles:
		return nil

	case friends.TableFriendships:
		return allowIf(self && (f.Column == "user_id" || f.Column == "friend_id"))

	case chat.TableConversations:
		return allowIf(self && (f.Column == "user_a" || f.Column == "user_b"))

	case chat.TableMessages:
		switch f.Column {
		case "sender_id", "recipient_id":
			return allowIf(self)
		case "conversation_id":
			return a.conversationParticipant(ctx, userID, f.Value)
		}

	case groups.TableGroups:
		switch f.Column {
		case "admin_id":
			return allowIf(self)
		case "id":
			return a.groupMember(ctx, userID, f.Value)
		}

	case groups.TableMembers, chat.TableGroupConversations, chat.TableGroupMessages:
		switch f.Column {
		case "user_id":
			return allowIf(self && table == groups.TableMembers)
		case "group_id":
			return a.groupMember(ctx, userID, f.Value)
		}

	case parties.TableParties, parties.TableAttendees:
		switch {
		case f.Column == "host_id" && table == parties.TableParties,
			f.Column == "user_id" && table == parties.TableAttendees:
			return allowIf(self)
		case f.Column == "id" && table == parties.TableParties,
			f.Column == "party_id" && table == parties.TableAttendees:
			if _, err := a.parties.Get(ctx, userID, f.Value); err != nil {
				return err
			}
			return nil
		}

	case game.TableGames, game.TableParticipants, game.TableRounds, game.TableNotices, game.TableAnswers:
		switch {
		case f.Column == "game_id", f.Column == "id" && table == game.TableGames:
			return a.gameParticipant(ctx, userID, f.Value)
		case f.Column == "user_id" && table == game.TableParticipants:
			return allowIf(self)
		}

	default:
		return errs.Invalid("unknown table %q", table)
	}

	return errs.Invalid("cannot filter %s by %s", table, f.Column)
}

func (a *Access) conversationParticipant(ctx context.Context, userID, conversationID string) error {
	var conv postgres.DirectConversation
	if err := a.db.WithContext(ctx).First(&conv, "id = ?", conversationID).Error; err != nil {
		return errs.NotFoundOr(err, "conversation")
	}
	return allowIf(conv.HasParticipant(userID))
}

func (a *Access) groupMember(ctx context.Context, userID, groupID string) error {
	ok, err := groups.IsMember(a.db.WithContext(ctx), groupID, userID)
	if err != nil {
		return err
	}
	return allowIf(ok)
}

func (a *Access) gameParticipant(ctx context.Context, userID, gameID string) error {
	ok, err := a.games.IsParticipant(ctx, gameID, userID)
	if err != nil {
		return fmt.Errorf("checking game participant: %w", err)
	}
	return allowIf(ok)
}

func allowIf(ok bool) error {
	if ok {
		return nil
	}
	return ErrSubscriptionForbidden
}
