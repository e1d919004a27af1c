package repository

import (
	"context"
	"net/http"

	"campuscreatives/internal/api"
	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/validation"
)

// ProfileRepository reads and edits the signed-in student's profile.
type ProfileRepository interface {
	Get(ctx context.Context) (*models.Profile, error)
	Update(ctx context.Context, in models.ProfileUpdate) (*models.Profile, error)
}

type profileRepository struct {
	api     Transport
	session UserSession
	log     *observability.APILogger
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(t Transport, s UserSession) ProfileRepository {
	return &profileRepository{api: t, session: s, log: observability.NewAPILogger("profiles")}
}

// Get fetches the profile and mirrors it into the stored user record.
func (r *profileRepository) Get(ctx context.Context) (*models.Profile, error) {
	if err := requireAuth(ctx, r.session, "view your profile"); err != nil {
		return nil, err
	}
	var p models.Profile
	if err := r.api.Do(ctx, api.Request{Method: http.MethodGet, Path: profilePath}, &p); err != nil {
		return nil, err
	}
	r.mirror(ctx, &p)
	return &p, nil
}

// Update saves the editable profile fields.
func (r *profileRepository) Update(ctx context.Context, in models.ProfileUpdate) (*models.Profile, error) {
	clean, err := validation.Profile(in)
	if err != nil {
		return nil, err
	}
	if err := requireAuth(ctx, r.session, "edit your profile"); err != nil {
		return nil, err
	}

	var p models.Profile
	if err := r.api.Do(ctx, api.Request{Method: http.MethodPut, Path: profilePath, JSON: clean}, &p); err != nil {
		return nil, err
	}
	r.mirror(ctx, &p)
	return &p, nil
}

// mirror copies profile fields onto the stored user. The server already
// holds the profile, so a failed local write is only logged.
func (r *profileRepository) mirror(ctx context.Context, p *models.Profile) {
	_, err := r.session.UpdateUser(ctx, func(u *models.User) {
		if p.Email != "" {
			u.Email = p.Email
		}
		u.Bio = p.Bio
		u.StudentID = p.StudentID
		u.IsVerified = p.IsVerified
	})
	if err != nil {
		r.log.LogError(ctx, "mirror profile", err)
	}
}
