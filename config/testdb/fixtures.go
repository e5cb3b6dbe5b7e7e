package testdb

import (
	"testing"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"

	"gorm.io/gorm"
)

// User creates an account with a profile and returns its id. The display
// name is the username with a capital first letter.
func User(t *testing.T, db *gorm.DB, username string) string {
	t.Helper()

	user := postgres.User{Email: username + "@example.com", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}

	display := username
	if display != "" && display[0] >= 'a' && display[0] <= 'z' {
		display = string(display[0]-'a'+'A') + display[1:]
	}
	profile := postgres.Profile{
		UserID:          user.ID,
		Username:        username,
		DisplayName:     display,
		Interests:       postgres.EncodeList(nil),
		ProfilePictures: postgres.EncodeList(nil),
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("creating profile %s: %v", username, err)
	}
	return user.ID
}

// Friends stores an accepted friendship requested by a.
func Friends(t *testing.T, db *gorm.DB, a, b string) {
	t.Helper()
	f := postgres.Friendship{UserID: a, FriendID: b, Status: postgres.FriendshipAccepted}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("creating friendship: %v", err)
	}
}

// Group creates a group administered by admin. Members join one millisecond
// apart in the given order, after the admin.
func Group(t *testing.T, db *gorm.DB, name, admin string, members ...string) string {
	t.Helper()

	g := postgres.Group{Name: name, AdminID: admin}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("creating group: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	rows := []postgres.GroupMember{{GroupID: g.ID, UserID: admin, Role: postgres.GroupRoleAdmin, JoinedAt: base}}
	for i, m := range members {
		rows = append(rows, postgres.GroupMember{
			GroupID:  g.ID,
			UserID:   m,
			Role:     postgres.GroupRoleMember,
			JoinedAt: base.Add(time.Duration(i+1) * time.Millisecond),
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("adding group members: %v", err)
	}
	return g.ID
}

// Questions seeds n questions and returns their ids in creation order.
func Questions(t *testing.T, db *gorm.DB, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q := postgres.Question{Category: "test", Question: "Never have I ever tested " + string(rune('A'+i))}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("creating question: %v", err)
		}
		ids = append(ids, q.ID)
	}
	return ids
}
