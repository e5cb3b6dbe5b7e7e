// Package groups manages groups of friends and their membership.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/friends"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
)

const (
	TableGroups  = "groups"
	TableMembers = "group_members"
)

var (
	ErrNotAdmin       = errs.New(errs.ErrForbidden, "only the group admin can do that")
	ErrNotMember      = errs.New(errs.ErrForbidden, "you are not a member of this group")
	ErrAdminCantLeave = errs.New(errs.ErrValidation, "the admin cannot leave the group")
	ErrNotFriends     = errs.New(errs.ErrValidation, "you can only add your friends")
)

type Service struct {
	db   *gorm.DB
	feed changefeed.Publisher
	log  *slog.Logger
}

func NewService(db *gorm.DB, feed changefeed.Publisher, log *slog.Logger) *Service {
	return &Service{db: db, feed: feed, log: log.With(slog.String("service", "groups"))}
}

type GroupSummary struct {
	postgres.Group
	MemberCount int64  `json:"member_count"`
	Role        string `json:"role"`
}

type Member struct {
	postgres.GroupMember
	Profile postgres.ProfileSummary `json:"profile"`
}

type CreateParams struct {
	Name        string
	Description string
	AvatarURL   string
	IsPrivate   bool
	MemberIDs   []string
}

// Create makes adminID the admin and first member. Initial members must be
// accepted friends of the admin.
func (s *Service) Create(ctx context.Context, adminID string, p CreateParams) (*postgres.Group, error) {
	const op = "groups.Create"

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errs.Invalid("group name is required")
	}

	group := postgres.Group{
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		AvatarURL:   strings.TrimSpace(p.AvatarURL),
		IsPrivate:   p.IsPrivate,
		AdminID:     adminID,
	}
	var members []postgres.GroupMember

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return fmt.Errorf("creating group: %w", err)
		}

		now := time.Now()
		members = append(members, postgres.GroupMember{
			GroupID:  group.ID,
			UserID:   adminID,
			Role:     postgres.GroupRoleAdmin,
			JoinedAt: now,
		})

		extra, err := addable(tx, adminID, group.ID, p.MemberIDs)
		if err != nil {
			return err
		}
		for i, userID := range extra {
			members = append(members, postgres.GroupMember{
				GroupID:  group.ID,
				UserID:   userID,
				Role:     postgres.GroupRoleMember,
				JoinedAt: now.Add(time.Duration(i+1) * time.Microsecond),
			})
		}
		if err := tx.Create(&members).Error; err != nil {
			return fmt.Errorf("adding members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("group created", slog.String("op", op), slog.String("group_id", group.ID), slog.Int("members", len(members)))

	events := []changefeed.Event{groupEvent(changefeed.Insert, group)}
	for _, m := range members {
		events = append(events, memberEvent(changefeed.Insert, m))
	}
	changefeed.Emit(ctx, s.feed, s.log, events...)
	return &group, nil
}

// Mine lists the groups userID belongs to with their member counts.
func (s *Service) Mine(ctx context.Context, userID string) ([]GroupSummary, error) {
	db := s.db.WithContext(ctx)

	var memberships []postgres.GroupMember
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("loading memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []GroupSummary{}, nil
	}

	ids := make([]string, len(memberships))
	roles := make(map[string]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.GroupID
		roles[m.GroupID] = m.Role
	}

	var groups []postgres.Group
	if err := db.Where("id IN ?", ids).Order("created_at desc").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}

	var counts []struct {
		GroupID string
		Total   int64
	}
	if err := db.Model(&postgres.GroupMember{}).
		Select("group_id, count(*) as total").
		Where("group_id IN ?", ids).
		Group("group_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("counting members: %w", err)
	}
	byGroup := make(map[string]int64, len(counts))
	for _, c := range counts {
		byGroup[c.GroupID] = c.Total
	}

	out := make([]GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = GroupSummary{Group: g, MemberCount: byGroup[g.ID], Role: roles[g.ID]}
	}
	return out, nil
}

// Get returns a group and its members to one of its members.
func (s *Service) Get(ctx context.Context, userID, groupID string) (*postgres.Group, []Member, error) {
	db := s.db.WithContext(ctx)

	var group postgres.Group
	if err := db.First(&group, "id = ?", groupID).Error; err != nil {
		return nil, nil, errs.NotFoundOr(err, "group")
	}
	if ok, err := IsMember(db, groupID, userID); err != nil {
		return nil, nil, err
	} else if !ok {
		return nil, nil, ErrNotMember
	}

	members, err := s.members(db, groupID)
	if err != nil {
		return nil, nil, err
	}
	return &group, members, nil
}

type UpdateParams struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
	IsPrivate   *bool   `json:"is_private"`
}

func (s *Service) Update(ctx context.Context, userID, groupID string, p UpdateParams) (*postgres.Group, error) {
	var group postgres.Group

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if group, err = loadAsAdmin(tx, userID, groupID); err != nil {
			return err
		}

		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return errs.Invalid("group name is required")
			}
			group.Name = name
		}
		if p.Description != nil {
			group.Description = strings.TrimSpace(*p.Description)
		}
		if p.AvatarURL != nil {
			group.AvatarURL = strings.TrimSpace(*p.AvatarURL)
		}
		if p.IsPrivate != nil {
			group.IsPrivate = *p.IsPrivate
		}

		if err := tx.Save(&group).Error; err != nil {
			return fmt.Errorf("saving group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	changefeed.Emit(ctx, s.feed, s.log, groupEvent(changefeed.Update, group))
	return &group, nil
}

// Delete removes the group with its members and chat.
func (s *Service) Delete(ctx context.Context, userID, groupID string) error {
	var (
		group   postgres.Group
		members []postgres.GroupMember
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if group, err = loadAsAdmin(tx, userID, groupID); err != nil {
			return err
		}

		if err := tx.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
			return fmt.Errorf("loading members: %w", err)
		}

		conversations := tx.Model(&postgres.GroupConversation{}).Select("id").Where("group_id = ?", groupID)
		if err := tx.Where("conversation_id IN (?)", conversations).Delete(&postgres.GroupMessage{}).Error; err != nil {
			return fmt.Errorf("deleting group messages: %w", err)
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&postgres.GroupConversation{}).Error; err != nil {
			return fmt.Errorf("deleting group conversation: %w", err)
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&postgres.GroupMember{}).Error; err != nil {
			return fmt.Errorf("deleting members: %w", err)
		}
		if err := tx.Delete(&group).Error; err != nil {
			return fmt.Errorf("deleting group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("group deleted", slog.String("group_id", groupID))
	events := make([]changefeed.Event, 0, len(members)+1)
	for _, m := range members {
		events = append(events, memberEvent(changefeed.Delete, m))
	}
	events = append(events, groupEvent(changefeed.Delete, group))
	changefeed.Emit(ctx, s.feed, s.log, events...)
	return nil
}

// AddMembers adds accepted friends of the admin who are not members yet.
// Returns the rows actually created.
func (s *Service) AddMembers(ctx context.Context, userID, groupID string, memberIDs []string) ([]postgres.GroupMember, error) {
	var added []postgres.GroupMember

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadAsAdmin(tx, userID, groupID); err != nil {
			return err
		}

		ids, err := addable(tx, userID, groupID, memberIDs)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		now := time.Now()
		for i, id := range ids {
			added = append(added, postgres.GroupMember{
				GroupID:  groupID,
				UserID:   id,
				Role:     postgres.GroupRoleMember,
				JoinedAt: now.Add(time.Duration(i) * time.Microsecond),
			})
		}
		if err := tx.Create(&added).Error; err != nil {
			return fmt.Errorf("adding members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]changefeed.Event, len(added))
	for i, m := range added {
		events[i] = memberEvent(changefeed.Insert, m)
	}
	changefeed.Emit(ctx, s.feed, s.log, events...)
	return added, nil
}

// Leave removes a non-admin member from the group.
func (s *Service) Leave(ctx context.Context, userID, groupID string) error {
	var m postgres.GroupMember
	if err := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("loading membership: %w", err)
	}
	if m.Role == postgres.GroupRoleAdmin {
		return ErrAdminCantLeave
	}
	if err := s.db.WithContext(ctx).Delete(&m).Error; err != nil {
		return fmt.Errorf("leaving group: %w", err)
	}
	changefeed.Emit(ctx, s.feed, s.log, memberEvent(changefeed.Delete, m))
	return nil
}

// AddableFriends lists the caller's friends who are not in the group yet.
func (s *Service) AddableFriends(ctx context.Context, userID, groupID string) ([]postgres.ProfileSummary, error) {
	db := s.db.WithContext(ctx)
	if ok, err := IsMember(db, groupID, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotMember
	}

	friendIDs, err := friends.FriendIDs(db, userID)
	if err != nil {
		return nil, err
	}
	ids, err := notMembers(db, groupID, friendIDs)
	if err != nil {
		return nil, err
	}

	summaries, err := profiles.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]postgres.ProfileSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := summaries[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// IsMember reports whether userID belongs to groupID.
func IsMember(db *gorm.DB, groupID, userID string) (bool, error) {
	var count int64
	if err := db.Model(&postgres.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return count > 0, nil
}

func (s *Service) members(db *gorm.DB, groupID string) ([]Member, error) {
	var rows []postgres.GroupMember
	if err := db.Where("group_id = ?", groupID).Order("joined_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading members: %w", err)
	}
	ids := make([]string, len(rows))
	for i, m := range rows {
		ids[i] = m.UserID
	}
	summaries, err := profiles.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Member, len(rows))
	for i, m := range rows {
		out[i] = Member{GroupMember: m, Profile: summaries[m.UserID]}
	}
	return out, nil
}

func loadAsAdmin(tx *gorm.DB, userID, groupID string) (postgres.Group, error) {
	var group postgres.Group
	if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
		return group, errs.NotFoundOr(err, "group")
	}
	if group.AdminID != userID {
		return group, ErrNotAdmin
	}
	return group, nil
}

// addable filters candidates down to accepted friends of userID who are not
// members of the group, keeping order. Any non-friend fails the call.
func addable(tx *gorm.DB, userID, groupID string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	friendIDs, err := friends.FriendIDs(tx, userID)
	if err != nil {
		return nil, err
	}
	isFriend := make(map[string]bool, len(friendIDs))
	for _, id := range friendIDs {
		isFriend[id] = true
	}

	seen := make(map[string]bool, len(candidates))
	var unique []string
	for _, id := range candidates {
		if id == userID || seen[id] {
			continue
		}
		if !isFriend[id] {
			return nil, ErrNotFriends
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return notMembers(tx, groupID, unique)
}

func notMembers(db *gorm.DB, groupID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var existing []string
	if err := db.Model(&postgres.GroupMember{}).
		Where("group_id = ? AND user_id IN ?", groupID, userIDs).
		Pluck("user_id", &existing).Error; err != nil {
		return nil, fmt.Errorf("loading members: %w", err)
	}
	in := make(map[string]bool, len(existing))
	for _, id := range existing {
		in[id] = true
	}
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if !in[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func groupEvent(op changefeed.Op, g postgres.Group) changefeed.Event {
	return changefeed.New(TableGroups, op, g, map[string]string{
		"id":       g.ID,
		"admin_id": g.AdminID,
	})
}

func memberEvent(op changefeed.Op, m postgres.GroupMember) changefeed.Event {
	return changefeed.New(TableMembers, op, m, map[string]string{
		"id":       m.ID,
		"group_id": m.GroupID,
		"user_id":  m.UserID,
	})
}
