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

	"gorm.io/gorm"
)

// UpdateParams changes only the fields that are set.
type UpdateParams struct {
	DisplayName     *string   `json:"display_name"`
	Username        *string   `json:"username"`
	Age             *int      `json:"age"`
	Bio             *string   `json:"bio"`
	University      *string   `json:"university"`
	Occupation      *string   `json:"occupation"`
	PhoneNumber     *string   `json:"phone_number"`
	Interests       *[]string `json:"interests"`
	ProfilePictures *[]string `json:"profile_pictures"`
	LocationLat     *float64  `json:"location_lat"`
	LocationLng     *float64  `json:"location_lng"`
	LocationName    *string   `json:"location_name"`
}

// Onboard completes a profile after sign-up. Display name and username must
// end up set, either already or through p.
func (s *Service) Onboard(ctx context.Context, userID string, p UpdateParams) (*postgres.Profile, error) {
	return s.save(ctx, userID, p, true)
}

// Update changes the caller's own profile.
func (s *Service) Update(ctx context.Context, userID string, p UpdateParams) (*postgres.Profile, error) {
	return s.save(ctx, userID, p, false)
}

func (s *Service) save(ctx context.Context, userID string, p UpdateParams, onboarding bool) (*postgres.Profile, error) {
	const op = "profiles.save"

	var profile postgres.Profile
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&profile).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound) && onboarding:
			created = true
			profile = postgres.Profile{
				UserID:          userID,
				Interests:       postgres.EncodeList(nil),
				ProfilePictures: postgres.EncodeList(nil),
			}
		default:
			return errs.NotFoundOr(err, "profile")
		}

		if err := apply(tx, &profile, p); err != nil {
			return err
		}
		if onboarding && (profile.DisplayName == "" || profile.Username == "") {
			return errs.Invalid("display name and username are required")
		}

		if created {
			if err := tx.Create(&profile).Error; err != nil {
				if errs.Duplicate(err) {
					return ErrUsernameTaken
				}
				return fmt.Errorf("creating profile: %w", err)
			}
			return nil
		}
		if err := tx.Save(&profile).Error; err != nil {
			if errs.Duplicate(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("saving profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evOp := changefeed.Update
	if created {
		evOp = changefeed.Insert
	}
	s.log.Debug("profile saved", slog.String("op", op), slog.String("user_id", userID))
	changefeed.Emit(ctx, s.feed, s.log, profileEvent(evOp, profile))
	return &profile, nil
}

func apply(tx *gorm.DB, profile *postgres.Profile, p UpdateParams) error {
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		if name == "" {
			return errs.Invalid("display name cannot be empty")
		}
		profile.DisplayName = name
	}

	if p.Username != nil {
		username := strings.TrimSpace(*p.Username)
		if !utils.ValidUsername(username) {
			return ErrInvalidUsername
		}
		if !strings.EqualFold(username, profile.Username) || profile.ID == "" {
			taken, err := exists(tx, &postgres.Profile{},
				"LOWER(username) = ? AND user_id <> ?", strings.ToLower(username), profile.UserID)
			if err != nil {
				return err
			}
			if taken {
				return ErrUsernameTaken
			}
		}
		profile.Username = username
	}

	if p.Age != nil {
		if *p.Age < 13 || *p.Age > 120 {
			return errs.Invalid("age must be between 13 and 120")
		}
		age := *p.Age
		profile.Age = &age
	}

	if p.PhoneNumber != nil {
		phone := utils.NormalizePhone(*p.PhoneNumber)
		if phone != "" && !utils.ValidPhone(phone) {
			return ErrInvalidPhone
		}
		profile.PhoneNumber = phone
	}

	if p.ProfilePictures != nil {
		pictures := cleanList(*p.ProfilePictures)
		if len(pictures) > postgres.MaxProfilePictures {
			return errs.Invalid("at most %d profile pictures", postgres.MaxProfilePictures)
		}
		profile.ProfilePictures = postgres.EncodeList(pictures)
		profile.AvatarURL = ""
		if len(pictures) > 0 {
			profile.AvatarURL = pictures[0]
		}
	}

	if p.Interests != nil {
		profile.Interests = postgres.EncodeList(cleanList(*p.Interests))
	}

	setString(&profile.Bio, p.Bio)
	setString(&profile.University, p.University)
	setString(&profile.Occupation, p.Occupation)
	setString(&profile.LocationName, p.LocationName)

	if (p.LocationLat == nil) != (p.LocationLng == nil) {
		return errs.Invalid("location needs both latitude and longitude")
	}
	if p.LocationLat != nil {
		if *p.LocationLat < -90 || *p.LocationLat > 90 || *p.LocationLng < -180 || *p.LocationLng > 180 {
			return errs.Invalid("location out of range")
		}
		lat, lng := *p.LocationLat, *p.LocationLng
		profile.LocationLat = &lat
		profile.LocationLng = &lng
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// cleanList trims entries and drops empties and repeats, keeping order.
func cleanList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
