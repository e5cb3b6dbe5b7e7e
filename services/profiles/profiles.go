// Package profiles owns accounts and the public profile attached to each.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	TableProfiles = "profiles"
	SearchLimit   = 20
)

var (
	ErrInvalidCredentials = errs.New(errs.ErrUnauthorized, "invalid email or password")
	ErrEmailTaken         = errs.New(errs.ErrAlreadyExists, "an account with this email already exists")
	ErrUsernameTaken      = errs.New(errs.ErrAlreadyExists, "this username is already taken")
	ErrInvalidUsername    = errs.New(errs.ErrValidation, "usernames are 3-20 letters, digits or underscores")
	ErrInvalidPhone       = errs.New(errs.ErrValidation, "invalid phone number")
)

type Service struct {
	db   *gorm.DB
	feed changefeed.Publisher
	log  *slog.Logger
}

func NewService(db *gorm.DB, feed changefeed.Publisher, log *slog.Logger) *Service {
	return &Service{db: db, feed: feed, log: log.With(slog.String("service", "profiles"))}
}

type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
	Username    string
	PhoneNumber string
}

// Register creates the account and its profile together.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*postgres.User, *postgres.Profile, error) {
	const op = "profiles.Register"

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Username = strings.TrimSpace(p.Username)
	p.PhoneNumber = utils.NormalizePhone(p.PhoneNumber)

	switch {
	case p.Email == "" || p.Password == "" || p.DisplayName == "" || p.Username == "" || p.PhoneNumber == "":
		return nil, nil, errs.Invalid("all fields are required")
	case !utils.ValidEmail(p.Email):
		return nil, nil, errs.Invalid("invalid email address")
	case !utils.ValidUsername(p.Username):
		return nil, nil, ErrInvalidUsername
	case len(p.Password) < utils.MinPasswordLength:
		return nil, nil, errs.Invalid("passwords need at least %d characters", utils.MinPasswordLength)
	case !utils.ValidPhone(p.PhoneNumber):
		return nil, nil, ErrInvalidPhone
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: hashing password: %w", op, err)
	}

	user := postgres.User{Email: p.Email, PasswordHash: string(hash)}
	profile := postgres.Profile{
		DisplayName:     p.DisplayName,
		Username:        p.Username,
		PhoneNumber:     p.PhoneNumber,
		Interests:       postgres.EncodeList(nil),
		ProfilePictures: postgres.EncodeList(nil),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if taken, err := exists(tx, &postgres.User{}, "email = ?", p.Email); err != nil {
			return err
		} else if taken {
			return ErrEmailTaken
		}
		if taken, err := exists(tx, &postgres.Profile{}, "LOWER(username) = ?", strings.ToLower(p.Username)); err != nil {
			return err
		} else if taken {
			return ErrUsernameTaken
		}

		// the checks above race with concurrent sign-ups; the unique
		// indexes settle it
		if err := tx.Create(&user).Error; err != nil {
			if errs.Duplicate(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("creating user: %w", err)
		}
		profile.UserID = user.ID
		if err := tx.Create(&profile).Error; err != nil {
			if errs.Duplicate(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("creating profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("account registered", slog.String("op", op), slog.String("user_id", user.ID))
	changefeed.Emit(ctx, s.feed, s.log, profileEvent(changefeed.Insert, profile))
	return &user, &profile, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*postgres.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errs.Invalid("email and password are required")
	}

	var user postgres.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*postgres.Profile, error) {
	var profile postgres.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, errs.NotFoundOr(err, "profile")
	}
	return &profile, nil
}

// GetByUsername returns the public view of a profile.
func (s *Service) GetByUsername(ctx context.Context, username string) (*postgres.Profile, error) {
	var profile postgres.Profile
	if err := s.db.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&profile).Error; err != nil {
		return nil, errs.NotFoundOr(err, "profile")
	}
	public := Public(profile)
	return &public, nil
}

// UsernameAvailable reports whether username is valid and unused by anyone
// other than userID.
func (s *Service) UsernameAvailable(ctx context.Context, username, userID string) (bool, error) {
	if !utils.ValidUsername(username) {
		return false, ErrInvalidUsername
	}
	taken, err := exists(s.db.WithContext(ctx), &postgres.Profile{},
		"LOWER(username) = ? AND user_id <> ?", strings.ToLower(username), userID)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Search matches display name or university, never returning the viewer.
// An empty term lists the newest profiles.
func (s *Service) Search(ctx context.Context, viewerID, term string) ([]postgres.Profile, error) {
	q := s.db.WithContext(ctx).Where("user_id <> ?", viewerID)

	term = strings.ToLower(strings.TrimSpace(term))
	if term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(display_name) LIKE ? ESCAPE '\\' OR LOWER(university) LIKE ? ESCAPE '\\' OR LOWER(username) LIKE ? ESCAPE '\\')", like, like, like)
	}

	var profiles []postgres.Profile
	if err := q.Order("created_at desc").Limit(SearchLimit).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}
	for i := range profiles {
		profiles[i] = Public(profiles[i])
	}
	return profiles, nil
}

// Public hides what only the owner should see.
func Public(p postgres.Profile) postgres.Profile {
	p.PhoneNumber = ""
	return p
}

// Summaries maps user ids to profile summaries. Unknown ids are left out.
func Summaries(db *gorm.DB, userIDs []string) (map[string]postgres.ProfileSummary, error) {
	out := make(map[string]postgres.ProfileSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []postgres.Profile
	if err := db.Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	for _, p := range profiles {
		out[p.UserID] = p.Summary()
	}
	return out, nil
}

func profileEvent(op changefeed.Op, p postgres.Profile) changefeed.Event {
	return changefeed.New(TableProfiles, op, Public(p), map[string]string{
		"id":      p.ID,
		"user_id": p.UserID,
	})
}

func exists(db *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return count > 0, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
